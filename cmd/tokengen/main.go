package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/tendant/simple-otp/pkg/config"
	"github.com/tendant/simple-otp/pkg/tokengenerator"
)

func main() {
	config.LoadDotEnv()
	var jwtConfig config.JWTConfig
	if err := config.Read(&jwtConfig); err != nil {
		slog.Error("Failed to read JWT config", "err", err)
		os.Exit(1)
	}

	secret := flag.String("secret", jwtConfig.Secret, "Secret key for signing the token")
	issuer := flag.String("issuer", jwtConfig.Issuer, "Issuer of the token")
	audience := flag.String("audience", jwtConfig.Audience, "Audience of the token")
	subject := flag.String("subject", "test-subject", "Subject of the token (the user ID codes are issued for)")
	roles := flag.String("roles", "", "Comma separated roles, e.g. admin")
	email := flag.String("email", "", "Optional email claim")
	expiry := flag.Duration("expiry", 30*time.Minute, "Token expiry duration (e.g., 30m, 1h, 24h)")
	outputFormat := flag.String("format", "compact", "Output format: compact, full, or debug")
	flag.Parse()

	tokenGen := tokengenerator.NewJwtTokenGenerator(*secret, *issuer, *audience)

	var roleList []string
	if *roles != "" {
		roleList = config.SplitAndTrim(*roles, ",")
	}

	tokenStr, expiryTime, err := tokenGen.GenerateToken(*subject, *expiry, roleList, *email)
	if err != nil {
		slog.Error("Failed to generate token", "err", err)
		fmt.Fprintf(os.Stderr, "Error: Failed to generate token: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "compact":
		fmt.Println(tokenStr)
	case "full":
		fmt.Printf("Token: %s\nExpires: %s\n", tokenStr, expiryTime.Format(time.RFC3339))
	case "debug":
		token, claims, err := tokenGen.ParseToken(tokenStr)
		if err != nil {
			slog.Error("Failed to parse generated token", "err", err)
			fmt.Fprintf(os.Stderr, "Error: Failed to parse generated token: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("=== Token Information ===\n")
		fmt.Printf("Token: %s\n\n", tokenStr)
		fmt.Printf("=== Token Header ===\n")
		headerJSON, _ := json.MarshalIndent(token.Header, "", "  ")
		fmt.Printf("%s\n\n", headerJSON)
		fmt.Printf("=== Token Claims ===\n")
		claimsJSON, _ := json.MarshalIndent(claims, "", "  ")
		fmt.Printf("%s\n\n", claimsJSON)
		fmt.Printf("Roles: %s\n", strings.Join(claims.Roles, ", "))
		fmt.Printf("Expires: %s\n", expiryTime.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Error: Unknown output format: %s\n", *outputFormat)
		os.Exit(1)
	}
}
