package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tendant/simple-otp/pkg/config"
	"github.com/tendant/simple-otp/pkg/notification"
	"github.com/xlzd/gotp"
)

// Sends a sample verification email through the configured SMTP server.
func main() {
	config.LoadDotEnv()
	var emailConfig config.EmailConfig
	if err := config.Read(&emailConfig); err != nil {
		slog.Error("Failed to read email config", "err", err)
		os.Exit(1)
	}

	host := flag.String("host", emailConfig.Host, "SMTP server host")
	port := flag.Int("port", int(emailConfig.Port), "SMTP server port")
	username := flag.String("user", emailConfig.Username, "SMTP username")
	password := flag.String("pass", emailConfig.Password, "SMTP password")
	from := flag.String("from", emailConfig.From, "From email address")
	to := flag.String("to", "", "To email address")
	useTLS := flag.Bool("tls", emailConfig.TLS, "Require STARTTLS")
	skipVerify := flag.Bool("skip-verify", true, "Skip TLS certificate verification")
	flag.Parse()

	if *host == "" || *from == "" || *to == "" {
		fmt.Println("Error: host, from and to are required")
		os.Exit(1)
	}

	smtp := emailConfig.ToSMTPConfig()
	smtp.Host = *host
	smtp.Port = *port
	smtp.Username = *username
	smtp.Password = *password
	smtp.From = *from
	smtp.TLS = *useTLS
	smtp.SkipVerify = *skipVerify

	nm, err := notification.NewNotificationManager(
		notification.WithSMTP(smtp),
		notification.WithOtpCodeTemplate(),
	)
	if err != nil {
		slog.Error("Failed to create notification manager", "err", err)
		os.Exit(1)
	}

	// Sample code only. Real codes come from the verification service.
	code := gotp.NewDefaultTOTP(gotp.RandomSecret(16)).Now()

	ctx, cancel := context.WithTimeout(context.Background(), smtp.Timeout+5*time.Second)
	defer cancel()
	err = nm.Send(ctx, notification.OtpCodeNotice, notification.NotificationData{
		To: *to,
		Data: map[string]string{
			"Code":         code,
			"ValidMinutes": "2",
		},
	}, notification.EmailSystem)
	if err != nil {
		slog.Error("Failed to send email", "err", err)
		os.Exit(1)
	}

	fmt.Printf("Sample verification email sent to %s\n", *to)
}
