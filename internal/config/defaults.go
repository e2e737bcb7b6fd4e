package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultBigQueryLocation = "US"
	DefaultQueryTimeout     = 60 * time.Second
	DefaultSchemaCacheTTL   = 5 * time.Minute

	DefaultMaxParallel = 4
	DefaultMaxRows     = 1000

	DefaultMaxQueryBytesProcessed = 10_000_000_000 // 10GB

	DefaultAgentTimeout = 300 // seconds

	DefaultConversationTTLMin = 60

	DefaultMaxPromptLength = 2000

	DefaultCORSMaxAge = 300
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

var DefaultSensitiveColumns = []string{
	"email", "phone", "ssn", "social_security_number",
	"credit_card", "password", "secret", "token",
	"api_key", "access_key", "private_key",
}

var DefaultPIIKeywords = []string{
	"password", "ssn", "social security", "credit card",
	"bank account", "secret", "private key",
	"access token", "api key", "personal data",
}
