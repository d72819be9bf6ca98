package config

import (
	"encoding/json"
	"os"

	"github.com/realforestry/hortus-auth/internal/flagx"
	"github.com/realforestry/hortus-auth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations
// use timex.Duration so both "15m" and integer nanoseconds parse. Fields
// left out of the file keep their current value; pointer fields tell an
// explicit zero apart from an absent key.
type JsonConfig struct {
	EndpointAddrHTTP             string            `json:"endpoint_addr_http"`
	EndpointAddrGRPC             string            `json:"endpoint_addr_grpc"`
	DatabaseDSN                  string            `json:"database_dsn"`
	Storage                      string            `json:"storage"`
	SessionBackend               string            `json:"session_backend"`
	RedisAddr                    string            `json:"redis_addr"`
	RedisPassword                string            `json:"redis_password"`
	RedisDB                      *int              `json:"redis_db"`
	SecretKey                    string            `json:"secret_key"`
	KeyID                        string            `json:"key_id"`
	PreviousKeys                 map[string]string `json:"previous_keys"`
	Issuer                       string            `json:"issuer"`
	AccessTokenValidityDuration  timex.Duration    `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration    `json:"refresh_token_validity_duration"`
	OTPValidityDuration          timex.Duration    `json:"otp_validity_duration"`
	OTPDigits                    int               `json:"otp_digits"`
	OTPMaxAttempts               *int              `json:"otp_max_attempts"`
	BcryptCost                   int               `json:"bcrypt_cost"`
	VerificationRequired         *bool             `json:"verification_required"`
	AllowedOrigins               []string          `json:"allowed_origins"`
	LogLevel                     string            `json:"log_level"`
	SMTPAddr                     string            `json:"smtp_addr"`
	SMTPUser                     string            `json:"smtp_user"`
	SMTPPassword                 string            `json:"smtp_password"`
	SMTPFrom                     string            `json:"smtp_from"`
}

// parseJson loads configuration values from a JSON file into config.
//
// The file path comes from the -c or -config flag, falling back to
// $HORTUS_CONFIG. With neither set no file is loaded. An unreadable file or
// invalid JSON panics.
func parseJson(config *Config) {

	// try flags, then env
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.Storage, c.Storage)
	setString(&config.SessionBackend, c.SessionBackend)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.KeyID, c.KeyID)
	setString(&config.Issuer, c.Issuer)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.SMTPAddr, c.SMTPAddr)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)

	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.OTPValidityDuration.Duration != 0 {
		config.OTPValidityDuration = c.OTPValidityDuration.Duration
	}
	if c.OTPDigits != 0 {
		config.OTPDigits = c.OTPDigits
	}
	if c.OTPMaxAttempts != nil {
		config.OTPMaxAttempts = *c.OTPMaxAttempts
	}
	if c.PreviousKeys != nil {
		config.PreviousKeys = c.PreviousKeys
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.VerificationRequired != nil {
		config.VerificationRequired = *c.VerificationRequired
	}
	if c.AllowedOrigins != nil {
		config.AllowedOrigins = c.AllowedOrigins
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
