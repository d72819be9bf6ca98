package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix starts every environment variable the server reads.
const EnvPrefix = "HORTUS_"

// envFile is loaded before the environment is read. Variables already set
// in the process environment win over the file.
var envFile = ".env"

// parseEnv overlays HORTUS_* environment variables onto config. Unset
// variables leave the current value alone; malformed numbers, booleans and
// durations panic like a malformed JSON file does.
//
// Recognized variables (without the prefix):
//
//	HTTP_ADDR, GRPC_ADDR, DATABASE_DSN, STORAGE, SESSION_BACKEND,
//	REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, SECRET_KEY, KEY_ID,
//	PREVIOUS_KEYS (comma separated kid=secret pairs), ISSUER,
//	ACCESS_TOKEN_TTL, REFRESH_TOKEN_TTL, OTP_TTL, OTP_DIGITS,
//	OTP_MAX_ATTEMPTS, BCRYPT_COST,
//	VERIFICATION_REQUIRED, ALLOWED_ORIGINS (comma separated), LOG_LEVEL,
//	SMTP_ADDR, SMTP_USER, SMTP_PASSWORD, SMTP_FROM
func parseEnv(config *Config) {
	// a missing .env file is normal
	_ = godotenv.Load(envFile)

	envString("HTTP_ADDR", &config.EndpointAddrHTTP)
	envString("GRPC_ADDR", &config.EndpointAddrGRPC)
	envString("DATABASE_DSN", &config.DatabaseDSN)
	envString("STORAGE", &config.Storage)
	envString("SESSION_BACKEND", &config.SessionBackend)
	envString("REDIS_ADDR", &config.RedisAddr)
	envString("REDIS_PASSWORD", &config.RedisPassword)
	envInt("REDIS_DB", &config.RedisDB)
	envString("SECRET_KEY", &config.SecretKey)
	envString("KEY_ID", &config.KeyID)
	envString("ISSUER", &config.Issuer)
	envDuration("ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	envDuration("REFRESH_TOKEN_TTL", &config.RefreshTokenValidityDuration)
	envDuration("OTP_TTL", &config.OTPValidityDuration)
	envInt("OTP_DIGITS", &config.OTPDigits)
	envInt("OTP_MAX_ATTEMPTS", &config.OTPMaxAttempts)
	envInt("BCRYPT_COST", &config.BcryptCost)
	envBool("VERIFICATION_REQUIRED", &config.VerificationRequired)
	envString("LOG_LEVEL", &config.LogLevel)
	envString("SMTP_ADDR", &config.SMTPAddr)
	envString("SMTP_USER", &config.SMTPUser)
	envString("SMTP_PASSWORD", &config.SMTPPassword)
	envString("SMTP_FROM", &config.SMTPFrom)

	if v, ok := os.LookupEnv(EnvPrefix + "ALLOWED_ORIGINS"); ok {
		config.AllowedOrigins = splitList(v)
	}
	if v, ok := os.LookupEnv(EnvPrefix + "PREVIOUS_KEYS"); ok {
		config.PreviousKeys = splitPairs("PREVIOUS_KEYS", v)
	}
}

func envString(name string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + name); ok {
		*dst = v
	}
}

func envInt(name string, dst *int) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
	}
	*dst = n
}

func envBool(name string, dst *bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
	}
	*dst = b
}

func envDuration(name string, dst *time.Duration) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		panic(fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
	}
	*dst = d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitPairs parses "kid=secret,kid2=secret2". An entry without "=" panics.
func splitPairs(name, s string) map[string]string {
	out := make(map[string]string)
	for _, p := range splitList(s) {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			panic(fmt.Errorf("%s%s: entry %q is not kid=secret", EnvPrefix, name, p))
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
