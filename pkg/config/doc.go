// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables
// with sensible defaults. Every knob is prefixed MQTTAUTH_.
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Key Variables
//
// Server:
//
//	MQTTAUTH_HOST="0.0.0.0"
//	MQTTAUTH_PORT="5500"
//	MQTTAUTH_HEALTH_PORT="9090"
//
// Store (postgres or badger):
//
//	MQTTAUTH_STORE_TYPE="postgres"
//	MQTTAUTH_POSTGRES_URL="postgres://localhost/mqtt?sslmode=disable"
//	MQTTAUTH_BADGER_PATH="./badger-data/mqtt-auth"
//
// Cache:
//
//	MQTTAUTH_CACHE_ENABLED="true"
//	MQTTAUTH_CACHE_TTL="1h"
//	MQTTAUTH_REDIS_URL="redis://localhost:6379"
//
// Auth:
//
//	MQTTAUTH_SECRET_KEY          - token signing secret (required)
//	MQTTAUTH_HASHER              - "argon2" or "aesgcm"
//	MQTTAUTH_ENCRYPTION_KEY      - hex 32-byte key, required for aesgcm
//	MQTTAUTH_API_KEY             - shared key for the /mqtt routes
//	MQTTAUTH_TOKEN_LEEWAY        - clock-skew tolerance for verification
//
// Validation catches missing required values and inconsistent combinations at
// startup rather than at first use.
package config
