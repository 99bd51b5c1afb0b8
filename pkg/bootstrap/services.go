package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-otp/pkg/attempt"
	"github.com/tendant/simple-otp/pkg/clock"
	"github.com/tendant/simple-otp/pkg/config"
	"github.com/tendant/simple-otp/pkg/emaillock"
	"github.com/tendant/simple-otp/pkg/emailvalidation"
	"github.com/tendant/simple-otp/pkg/notification"
	"github.com/tendant/simple-otp/pkg/otpcode"
	"github.com/tendant/simple-otp/pkg/ratelimit"
	"github.com/tendant/simple-otp/pkg/verification"
)

// Services holds the wired verification stack.
type Services struct {
	Repository   attempt.Repository
	Codes        *otpcode.Generator
	Verification *verification.VerificationService
	Validator    *emailvalidation.Validator
	Metrics      *verification.Metrics
	// Direct access to the lock and cooldown for operator tooling. They
	// share the repository and timings with Verification.
	EmailLock *emaillock.EmailLock
	Cooldown  *ratelimit.CooldownLimiter

	pool *pgxpool.Pool
	rdb  *redis.Client
}

// Options tweak NewServices. Zero values use the production defaults.
type Options struct {
	Clock      clock.Clock
	Registerer prometheus.Registerer
	// Overrides the mailer chosen from the email config.
	Mailer verification.Mailer
}

// NewServices opens the configured backends and builds the verification
// service on top of them. Close releases the backends.
func NewServices(ctx context.Context, cfg Config, opts Options) (*Services, error) {
	s := &Services{}

	if cfg.needsPostgres() {
		dbConfig := cfg.Database.ToDbConfig()
		pool, err := dbutils.NewDbPool(ctx, dbConfig)
		if err != nil {
			slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
			return nil, fmt.Errorf("create postgres pool: %w", err)
		}
		s.pool = pool
	}

	if cfg.needsRedis() {
		s.rdb = cfg.Redis.NewClient()
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
	}

	repo, err := attempt.NewAttemptRepository(cfg.Otp.PersistenceType, attempt.RepositoryConfig{
		Pool:           s.pool,
		Redis:          s.rdb,
		RedisKeyPrefix: cfg.Redis.AttemptPrefix(),
		DataDir:        cfg.Otp.DataDir,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Repository = repo

	var rdb otpcode.RedisClient
	if s.rdb != nil {
		rdb = s.rdb
	}
	store, err := otpcode.NewStore(cfg.Otp.CodeStore, rdb, cfg.Redis.CodePrefix())
	if err != nil {
		s.Close()
		return nil, err
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	s.Codes = otpcode.NewGenerator(store,
		otpcode.WithClock(clk),
		otpcode.WithTTL(cfg.Otp.CodeTTL),
		otpcode.WithDigits(cfg.Otp.CodeDigits),
	)

	mailer := opts.Mailer
	if mailer == nil {
		mailer, err = newMailer(cfg.Email)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	s.Metrics, err = verification.NewMetrics(opts.Registerer)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	s.Verification = verification.NewVerificationService(repo, s.Codes, mailer,
		verification.WithClock(clk),
		verification.WithLockDuration(cfg.Otp.LockDuration),
		verification.WithCooldown(cfg.Otp.Cooldown),
		verification.WithRollbackOnSendFailure(cfg.Otp.RollbackOnSendFailure),
		verification.WithMetrics(s.Metrics),
	)
	s.EmailLock = emaillock.New(repo,
		emaillock.WithClock(clk),
		emaillock.WithDuration(cfg.Otp.LockDuration),
	)
	s.Cooldown = ratelimit.NewCooldownLimiter(repo,
		ratelimit.WithCooldownClock(clk),
		ratelimit.WithCooldown(cfg.Otp.Cooldown),
	)
	s.Validator = emailvalidation.New(emailvalidation.WithAllowedDomains(cfg.Otp.Domains()))

	slog.Info("Verification services ready",
		"persistence", cfg.Otp.PersistenceType,
		"code_store", cfg.Otp.CodeStore,
		"smtp", cfg.Email.IsConfigured())
	return s, nil
}

func newMailer(cfg config.EmailConfig) (verification.Mailer, error) {
	if !cfg.IsConfigured() {
		slog.Warn("EMAIL_HOST not set, codes will be logged instead of mailed")
		return verification.LogMailer{}, nil
	}
	nm, err := notification.NewNotificationManager(
		notification.WithSMTP(cfg.ToSMTPConfig()),
		notification.WithOtpCodeTemplate(),
	)
	if err != nil {
		return nil, fmt.Errorf("create notification manager: %w", err)
	}
	return verification.NewNotificationMailer(nm), nil
}

// Close releases the database pool and redis client, if open.
func (s *Services) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			slog.Warn("Failed closing redis client", "err", err)
		}
	}
}
