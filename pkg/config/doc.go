// Package config holds the environment-driven configuration of the OTP
// service and small helpers for reading environment variables.
//
// Structs carry cleanenv tags and are loaded with Read after LoadDotEnv:
//
//	config.LoadDotEnv()
//	var cfg config.OtpConfig
//	if err := config.Read(&cfg); err != nil {
//	    return err
//	}
//
// Each struct converts itself into the options of the package it configures
// (ToDbConfig, ToSMTPConfig, ToMiddlewareConfig, NewClient).
package config
