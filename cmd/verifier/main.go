package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/tendant/chi-demo/app"
	"github.com/tendant/simple-otp/pkg/bootstrap"
	"github.com/tendant/simple-otp/pkg/clock"
	otpconfig "github.com/tendant/simple-otp/pkg/config"
	"github.com/tendant/simple-otp/pkg/ratelimit"
	"github.com/tendant/simple-otp/pkg/router"
	"github.com/tendant/simple-otp/pkg/verification/api"
)

const verificationPrefix = "/api/otp"

type Config struct {
	Verification bootstrap.Config
	AppConfig    app.AppConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting OTP verification service")

	otpconfig.LoadDotEnv()
	config := Config{}
	if err := cleanenv.ReadEnv(&config); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}
	bootstrap.PrintStartupSummary(os.Stdout, config.Verification)
	cfg := config.Verification

	ctx := context.Background()
	services, err := bootstrap.NewServices(ctx, cfg, bootstrap.Options{})
	if err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer services.Close()

	routes := router.Config{
		Prefix:             verificationPrefix,
		VerificationHandle: api.NewHandle(services.Verification, services.Validator),
		TokenAuth:          jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil),
		MetricsHandler:     promhttp.Handler(),
	}
	limiter := ratelimit.NewMiddleware(cfg.RateLimit.ToMiddlewareConfig(routes.RequestPath()), clock.New())
	routes.RateLimiter = limiter

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Otp.PurgeSchedule, func() {
		if _, err := services.Verification.PurgeStale(context.Background(), cfg.Otp.PurgeAfter); err != nil {
			slog.Error("Scheduled purge failed", "error", err)
		}
		n := limiter.Prune()
		slog.Info("Pruned idle rate limit buckets", "count", n, "remaining", limiter.Stats())
	}); err != nil {
		slog.Error("Invalid purge schedule", "schedule", cfg.Otp.PurgeSchedule, "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := app.DefaultApp()
	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)
	router.SetupRoutes(server.R, routes)

	slog.Info("Routes mounted", "prefix", verificationPrefix)
	server.Run()
}
