package config

import (
	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is where the query API and /metrics listen.
	WebPort string

	// DBEnabled is false when DB_HOST is unset; the daemon then keeps its
	// journal and snapshots in memory only.
	DBEnabled  bool
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	WebPort = getEnvOr("WEB_PORT", "8080")

	DBHost = getEnvOr("DB_HOST", "")
	DBEnabled = DBHost != ""
	if DBEnabled {
		port, err := getEnvAsUint64Or("DB_PORT", 5432)
		if err != nil {
			return err
		}
		DBPort = int(port)
		if DBUser, err = getEnv("DB_USER"); err != nil {
			return err
		}
		if DBName, err = getEnv("DB_NAME"); err != nil {
			return err
		}
		DBPassword = getEnvOr("DB_PASSWORD", "")
		DBSSLMode = getEnvOr("DB_SSLMODE", "disable")
	}

	log.Debug().
		Str("WebPort", WebPort).
		Bool("DBEnabled", DBEnabled).
		Str("DBHost", DBHost).
		Int("DBPort", DBPort).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
