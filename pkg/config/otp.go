package config

import "time"

// OtpConfig holds the verification flow settings.
type OtpConfig struct {
	// memory, file, postgres or redis
	PersistenceType string `env:"OTP_PERSISTENCE" env-default:"memory"`
	// memory or redis
	CodeStore string `env:"OTP_CODE_STORE" env-default:"memory"`
	DataDir   string `env:"OTP_DATA_DIR" env-default:"./data"`

	CodeTTL      time.Duration `env:"OTP_CODE_TTL" env-default:"2m"`
	CodeDigits   int           `env:"OTP_CODE_DIGITS" env-default:"6"`
	LockDuration time.Duration `env:"OTP_EMAIL_LOCK_DURATION" env-default:"10m"`
	Cooldown     time.Duration `env:"OTP_RESEND_COOLDOWN" env-default:"3m"`

	RollbackOnSendFailure bool `env:"OTP_ROLLBACK_ON_SEND_FAILURE" env-default:"false"`

	// Comma separated. Empty allows every domain.
	AllowedDomains string `env:"OTP_ALLOWED_DOMAINS" env-default:"gmail.com,yahoo.com,outlook.com,hotmail.com,icloud.com"`

	// Records whose timers all ended longer ago than this are purged.
	PurgeAfter    time.Duration `env:"OTP_PURGE_AFTER" env-default:"24h"`
	PurgeSchedule string        `env:"OTP_PURGE_SCHEDULE" env-default:"@hourly"`
}

// Domains returns AllowedDomains as a slice.
func (o OtpConfig) Domains() []string {
	return SplitAndTrim(o.AllowedDomains, ",")
}
