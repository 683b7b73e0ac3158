// Package config provides application configuration management from environment variables.
//
// # Overview
//
// LoadConfig reads SOLARPRO_* variables, applies defaults and validates the
// result. LoadDotEnv can be called first to populate the environment from a
// .env file; variables already set take precedence.
//
// # Configuration Structure
//
// Server settings:
//
//	SOLARPRO_HOST="0.0.0.0"
//	SOLARPRO_PORT="8080"
//	SOLARPRO_HEALTH_PORT="9090"
//	SOLARPRO_READ_TIMEOUT="15s"
//	SOLARPRO_WRITE_TIMEOUT="15s"
//
// Data store settings (URL and API key are required):
//
//	SOLARPRO_STORE_TYPE="postgres"  # postgres, memory
//	SOLARPRO_STORE_URL="postgres://localhost/solarpro?sslmode=disable"
//	SOLARPRO_STORE_API_KEY="..."
//	SOLARPRO_STORE_REPLICA_URLS="postgres://replica1/solarpro,postgres://replica2/solarpro"
//	SOLARPRO_REDIS_URL="redis://localhost:6379"
//
// Session settings:
//
//	SOLARPRO_AUTH_JWT_SECRET="..."   # required
//	SOLARPRO_AUTH_TOKEN_TTL="24h"
//	SOLARPRO_AUTH_COOKIE_NAME="solarpro_session"
//
// Observability settings:
//
//	SOLARPRO_LOG_LEVEL="info"
//	SOLARPRO_METRICS_ENABLED="true"
//	SOLARPRO_OTEL_ENABLED="false"
//	SOLARPRO_OTEL_ENDPOINT="localhost:4317"
package config
