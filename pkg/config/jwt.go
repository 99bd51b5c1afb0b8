package config

// JWTConfig holds the HS256 settings used to verify caller tokens and to sign
// development tokens.
type JWTConfig struct {
	Secret   string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
	Issuer   string `env:"JWT_ISSUER" env-default:"simple-otp"`
	Audience string `env:"JWT_AUDIENCE" env-default:"simple-otp"`
}
