package bootstrap

import (
	"fmt"
	"io"
	"strings"
)

const defaultJWTSecret = "very-secure-jwt-secret"

// PrintStartupSummary writes the effective verification settings and any
// insecure defaults to w.
func PrintStartupSummary(w io.Writer, cfg Config) {
	printSectionHeader(w, "OTP VERIFICATION SERVICE")

	fmt.Fprintln(w, "\n📋 Verification Policy:")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "  Email lock:     %s\n", cfg.Otp.LockDuration)
	fmt.Fprintf(w, "  Resend wait:    %s\n", cfg.Otp.Cooldown)
	fmt.Fprintf(w, "  Code lifetime:  %s (%d digits)\n", cfg.Otp.CodeTTL, cfg.Otp.CodeDigits)
	fmt.Fprintf(w, "  Rollback:       %t\n", cfg.Otp.RollbackOnSendFailure)
	domains := cfg.Otp.Domains()
	if len(domains) == 0 {
		fmt.Fprintln(w, "  Domains:        (any)")
	} else {
		fmt.Fprintf(w, "  Domains:        %s\n", strings.Join(domains, ", "))
	}

	fmt.Fprintln(w, "\n💾 Storage:")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	fmt.Fprintf(w, "  Attempts:       %s\n", storageTarget(cfg))
	fmt.Fprintf(w, "  Codes:          %s\n", cfg.Otp.CodeStore)

	if warnings := startupWarnings(cfg); len(warnings) > 0 {
		fmt.Fprintln(w, "\n⚠️  WARNINGS:")
		fmt.Fprintln(w, strings.Repeat("-", 80))
		for _, warning := range warnings {
			fmt.Fprintf(w, "  • %s\n", warning)
		}
	}

	printSectionFooter(w)
}

func storageTarget(cfg Config) string {
	switch cfg.Otp.PersistenceType {
	case "postgres", "postgresql":
		return fmt.Sprintf("postgres %s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	case "redis":
		return "redis " + cfg.Redis.Addr
	case "file":
		return "file " + cfg.Otp.DataDir
	default:
		return cfg.Otp.PersistenceType
	}
}

func startupWarnings(cfg Config) []string {
	var warnings []string
	if !cfg.Email.IsConfigured() {
		warnings = append(warnings, "EMAIL_HOST is not set, codes are written to the log")
	}
	if cfg.JWT.Secret == defaultJWTSecret {
		warnings = append(warnings, "JWT_SECRET uses the built-in default")
	}
	if cfg.Otp.PersistenceType == "memory" || cfg.Otp.PersistenceType == "" {
		warnings = append(warnings, "attempt records are kept in memory and lost on restart")
	}
	return warnings
}

func printSectionHeader(w io.Writer, title string) {
	border := strings.Repeat("=", 80)
	fmt.Fprintf(w, "\n%s\n", border)
	fmt.Fprintf(w, "🚀 %s\n", title)
	fmt.Fprintf(w, "%s\n", border)
}

func printSectionFooter(w io.Writer) {
	border := strings.Repeat("=", 80)
	fmt.Fprintf(w, "%s\n\n", border)
}
