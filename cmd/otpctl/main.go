package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-otp/pkg/bootstrap"
	"github.com/tendant/simple-otp/pkg/emailvalidation"
	"github.com/tendant/simple-otp/pkg/verification"
)

type cli struct {
	out      io.Writer
	format   string
	envFile  string
	services *bootstrap.Services
	cfg      bootstrap.Config
}

func (c *cli) print(v any, text func(w io.Writer)) error {
	if c.format == "json" {
		p, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, string(p))
		return nil
	}
	text(c.out)
	return nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := newRootCmd(os.Stdout, nil).Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. A non-nil services skips loading
// configuration and backends.
func newRootCmd(out io.Writer, services *bootstrap.Services) *cobra.Command {
	c := &cli{out: out, format: "text", services: services}

	root := &cobra.Command{
		Use:           "otpctl",
		Short:         "Operate the email verification state of users",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.format != "text" && c.format != "json" {
				return fmt.Errorf("unknown output format %q", c.format)
			}
			if c.services != nil {
				return nil
			}
			var files []string
			if c.envFile != "" {
				files = append(files, c.envFile)
			}
			cfg, err := bootstrap.LoadConfig(files...)
			if err != nil {
				return fmt.Errorf("read configuration: %w", err)
			}
			if cfg.Otp.PersistenceType == "memory" {
				slog.Warn("OTP_PERSISTENCE is memory, changes are lost when otpctl exits")
			}
			c.cfg = cfg
			c.services, err = bootstrap.NewServices(cmd.Context(), cfg, bootstrap.Options{})
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.services != nil && services == nil {
				c.services.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.format, "out", c.format, "Output format: json|text")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", "", "Env file to load before reading configuration (default .env)")

	root.AddCommand(
		c.requestCmd(),
		c.verifyCmd(),
		c.statusCmd(),
		c.codeCmd(),
		c.resetCmd(),
		c.purgeCmd(),
		c.lockCmd(),
		c.cooldownCmd(),
	)
	return root
}

type decisionOutput struct {
	Kind              verification.Kind `json:"kind"`
	RetryAfterSeconds int64             `json:"retry_after_seconds,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	Error             string            `json:"error,omitempty"`
}

func (c *cli) requestCmd() *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Request a verification code for a user and email",
		RunE: func(cmd *cobra.Command, args []string) error {
			result := c.services.Validator.Validate(email)
			if !result.Valid {
				return fmt.Errorf("email rejected: %s", result.Reason)
			}
			d, err := c.services.Verification.RequestVerification(cmd.Context(), userID, emailvalidation.Normalize(email))
			if err != nil {
				return err
			}
			out := decisionOutput{Kind: d.Kind, RetryAfterSeconds: d.RetryAfterSeconds}
			if d.Issued() {
				out.ExpiresAt = &d.ExpiresAt
			}
			if d.Err != nil {
				out.Error = d.Err.Error()
			}
			return c.print(out, func(w io.Writer) {
				fmt.Fprintf(w, "decision: %s\n", d.Kind)
				if d.Rejected() {
					fmt.Fprintf(w, "retry after: %ds\n", d.RetryAfterSeconds)
				}
				if out.ExpiresAt != nil {
					fmt.Fprintf(w, "code expires: %s\n", d.ExpiresAt.Format(time.RFC3339))
				}
				if out.Error != "" {
					fmt.Fprintf(w, "send error: %s\n", out.Error)
				}
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&email, "email", "", "Email address to verify")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	var userID, code string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check and consume a user's code",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := c.services.Verification.VerifyCode(cmd.Context(), userID, code)
			if err != nil {
				return err
			}
			return c.print(map[string]bool{"verified": ok}, func(w io.Writer) {
				fmt.Fprintf(w, "verified: %t\n", ok)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&code, "code", "", "Code received by email")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("code")
	return cmd
}

type statusOutput struct {
	UserID                   string     `json:"user_id"`
	Email                    string     `json:"email,omitempty"`
	AttemptCount             int        `json:"attempt_count"`
	LastAttempt              *time.Time `json:"last_attempt,omitempty"`
	EmailLockUntil           *time.Time `json:"email_lock_until,omitempty"`
	OtpCooldownUntil         *time.Time `json:"otp_cooldown_until,omitempty"`
	EmailLocked              bool       `json:"email_locked"`
	EmailLockRetryAfterSecs  int64      `json:"email_lock_retry_after_seconds,omitempty"`
	CooldownRemainingSeconds int64      `json:"cooldown_remaining_seconds,omitempty"`
	ActiveCode               bool       `json:"active_code"`
	CodeExpiresAt            *time.Time `json:"code_expires_at,omitempty"`
}

func (c *cli) statusCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a user's attempt record, lock and cooldown",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.services.Verification.GetStatus(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out := statusOutput{
				UserID:                   userID,
				EmailLocked:              !st.Lock.Allowed,
				EmailLockRetryAfterSecs:  verification.RetrySeconds(st.Lock.RetryAfter),
				CooldownRemainingSeconds: verification.RetrySeconds(st.CooldownRemaining),
				ActiveCode:               st.ActiveCode,
			}
			if st.ActiveCode {
				out.CodeExpiresAt = &st.CodeExpiresAt
			}
			if rec := st.Record; rec != nil {
				out.Email = rec.Email
				out.AttemptCount = rec.AttemptCount
				out.LastAttempt = timePtr(rec.LastAttempt)
				out.EmailLockUntil = timePtr(rec.EmailLockUntil)
				out.OtpCooldownUntil = timePtr(rec.OtpCooldownUntil)
			}
			return c.print(out, func(w io.Writer) {
				if st.Record == nil {
					fmt.Fprintf(w, "user %s has no attempt record\n", userID)
					return
				}
				fmt.Fprintf(w, "user:           %s\n", userID)
				fmt.Fprintf(w, "email:          %s\n", out.Email)
				fmt.Fprintf(w, "attempts:       %d\n", out.AttemptCount)
				fmt.Fprintf(w, "last attempt:   %s\n", st.Record.LastAttempt.Format(time.RFC3339))
				fmt.Fprintf(w, "email locked:   %t (%ds)\n", out.EmailLocked, out.EmailLockRetryAfterSecs)
				fmt.Fprintf(w, "resend wait:    %ds\n", out.CooldownRemainingSeconds)
				fmt.Fprintf(w, "active code:    %t\n", out.ActiveCode)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.MarkFlagRequired("user")
	return cmd
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (c *cli) codeCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "code",
		Short: "Print a user's live code (requires a shared code store)",
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, ok, err := c.services.Verification.GetActiveCode(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no active code for user %s", userID)
			}
			return c.print(map[string]any{"code": entry.Code, "expires_at": entry.ExpiresAt}, func(w io.Writer) {
				fmt.Fprintf(w, "%s (expires %s)\n", entry.Code, entry.ExpiresAt.Format(time.RFC3339))
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.MarkFlagRequired("user")
	return cmd
}

func (c *cli) resetCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a user's attempt record and live code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.services.Verification.ResetUser(cmd.Context(), userID); err != nil {
				return err
			}
			return c.print(map[string]string{"reset": userID}, func(w io.Writer) {
				fmt.Fprintf(w, "reset %s\n", userID)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.MarkFlagRequired("user")
	return cmd
}

func (c *cli) purgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete records whose lock and cooldown ended long ago",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				olderThan = c.cfg.Otp.PurgeAfter
			}
			n, err := c.services.Verification.PurgeStale(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			return c.print(map[string]int64{"purged": n}, func(w io.Writer) {
				fmt.Fprintf(w, "purged %d records\n", n)
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age past the last timer (default OTP_PURGE_AFTER)")
	return cmd
}

type lockOutput struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email,omitempty"`
	Locked            bool   `json:"locked"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
}

func (c *cli) lockCmd() *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Show a user's email lock, or pin an email with --email",
		Long: "Without --email, print whether the user is locked to an email. With --email, " +
			"claim that email for the user and restart the lock window without sending a code.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := lockOutput{UserID: userID}
			if email != "" {
				result := c.services.Validator.Validate(email)
				if !result.Valid {
					return fmt.Errorf("email rejected: %s", result.Reason)
				}
				out.Email = emailvalidation.Normalize(email)
				if err := c.services.EmailLock.Lock(cmd.Context(), userID, out.Email); err != nil {
					return err
				}
			}
			st, err := c.services.EmailLock.Check(cmd.Context(), userID)
			if err != nil {
				return err
			}
			out.Locked = !st.Allowed
			out.RetryAfterSeconds = verification.RetrySeconds(st.RetryAfter)
			return c.print(out, func(w io.Writer) {
				if out.Email != "" {
					fmt.Fprintf(w, "locked %s to %s\n", userID, out.Email)
				}
				fmt.Fprintf(w, "email locked: %t (%ds)\n", out.Locked, out.RetryAfterSeconds)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&email, "email", "", "Email to pin for the user")
	cmd.MarkFlagRequired("user")
	return cmd
}

type cooldownOutput struct {
	UserID            string `json:"user_id"`
	Email             string `json:"email"`
	Allowed           bool   `json:"allowed"`
	RetryAfterSeconds int64  `json:"retry_after_seconds,omitempty"`
}

func (c *cli) cooldownCmd() *cobra.Command {
	var userID, email string
	cmd := &cobra.Command{
		Use:   "cooldown",
		Short: "Charge a code sent outside this service against the resend cooldown",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cooldownOutput{UserID: userID, Email: emailvalidation.Normalize(email)}
			res, err := c.services.Cooldown.CheckAndConsume(cmd.Context(), userID, out.Email)
			if err != nil {
				return err
			}
			out.Allowed = res.Allowed
			out.RetryAfterSeconds = verification.RetrySeconds(res.RetryAfter)
			return c.print(out, func(w io.Writer) {
				if out.Allowed {
					fmt.Fprintf(w, "cooldown started for %s\n", out.Email)
					return
				}
				fmt.Fprintf(w, "refused, retry after: %ds\n", out.RetryAfterSeconds)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&email, "email", "", "Email the code was sent to")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("email")
	return cmd
}
