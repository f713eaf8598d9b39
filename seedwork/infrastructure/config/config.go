package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Database     DatabaseConfig
	Firebase     FirebaseConfig
	Server       ServerConfig
	Broker       BrokerConfig
	Orchestrator OrchestratorConfig
	Analyzers    AnalyzersConfig
}

// BrokerConfig controls the Event Bus Client's broker binding.
type BrokerConfig struct {
	// Driver selects the EventBus implementation: "memory" for local/dev
	// and tests, "pubsub" for the production Cloud Pub/Sub binding.
	Driver    string
	ProjectID string
	// TopicNames maps each logical Topic (see seedwork/infrastructure/events)
	// to a concrete Pub/Sub topic name. Falls back to the topic's own
	// string value when a mapping is absent, so the map only needs to
	// carry overrides.
	TopicNames map[string]string
}

// OrchestratorConfig holds the timing knobs for session cleanup,
// coordination-state purging, analysis call timeouts, and the
// submission-finalize database retry policy.
type OrchestratorConfig struct {
	FileSessionCleanupTimeout time.Duration
	PeriodicCleanupInterval   time.Duration
	CoordinationPurgeAfter    time.Duration
	AnalysisCallTimeout       time.Duration
	FinalizeRetryAttempts     int
	FinalizeRetryBaseDelay    time.Duration
}

// AnalyzersConfig selects which implementation backs each of the five
// analysis stages and the two upstream conversion/transcription steps.
// "mock" is the in-process stand-in used for local/dev and tests. For
// the five analysis stages any other value is treated as the base URL
// of the corresponding HTTP analyzer service; for SpeechToText any other
// value is the AssemblyAI API key. Transcoder is always backed by the
// in-process mock, whatever its value.
type AnalyzersConfig struct {
	Pronunciation string
	Grammar       string
	Lexical       string
	Vocabulary    string
	Fluency       string
	Transcoder    string
	SpeechToText  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// FirebaseConfig holds Firebase configuration
type FirebaseConfig struct {
	ProjectID           string
	CredentialsPath     string
	UseEmulator         bool
	EmulatorHost        string
	ServiceAccountEmail string
	// StorageBucket is the bucket the audio-URL resolver signs against.
	// Empty disables Firebase resolution; audio_urls are then used as-is.
	StorageBucket string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "your-super-secret-and-long-postgres-password"),
			Name:     getEnv("DB_NAME", "teammate_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Firebase: FirebaseConfig{
			ProjectID:           getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsPath:     getEnv("FIREBASE_CREDENTIALS_PATH", ""),
			UseEmulator:         getEnvBool("FIREBASE_USE_EMULATOR", false),
			EmulatorHost:        getEnv("FIREBASE_EMULATOR_HOST", "localhost:9099"),
			ServiceAccountEmail: getEnv("FIREBASE_SERVICE_ACCOUNT_EMAIL", ""),
			StorageBucket:       getEnv("FIREBASE_STORAGE_BUCKET", ""),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Env:  getEnv("APP_ENV", "development"),
		},
		Broker: BrokerConfig{
			Driver:     getEnv("BROKER_DRIVER", "memory"),
			ProjectID:  getEnv("BROKER_PROJECT_ID", ""),
			TopicNames: map[string]string{},
		},
		Orchestrator: OrchestratorConfig{
			FileSessionCleanupTimeout: getEnvDuration("FILE_SESSION_CLEANUP_TIMEOUT", 30*time.Minute),
			PeriodicCleanupInterval:   getEnvDuration("PERIODIC_CLEANUP_INTERVAL", 5*time.Minute),
			CoordinationPurgeAfter:    getEnvDuration("COORDINATION_PURGE_AFTER", 2*time.Hour),
			AnalysisCallTimeout:       getEnvDuration("ANALYSIS_CALL_TIMEOUT", 120*time.Second),
			FinalizeRetryAttempts:     getEnvInt("FINALIZE_RETRY_ATTEMPTS", 3),
			FinalizeRetryBaseDelay:    getEnvDuration("FINALIZE_RETRY_BASE_DELAY", 100*time.Millisecond),
		},
		Analyzers: AnalyzersConfig{
			Pronunciation: getEnv("PRONUNCIATION_ANALYZER_URL", "mock"),
			Grammar:       getEnv("GRAMMAR_ANALYZER_URL", "mock"),
			Lexical:       getEnv("LEXICAL_ANALYZER_URL", "mock"),
			Vocabulary:    getEnv("VOCABULARY_ANALYZER_URL", "mock"),
			Fluency:       getEnv("FLUENCY_ANALYZER_URL", "mock"),
			Transcoder:    getEnv("AUDIO_TRANSCODER_URL", "mock"),
			SpeechToText:  getEnv("SPEECH_TO_TEXT_URL", "mock"),
		},
	}, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets an environment variable as boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration gets an environment variable parsed as a Go duration
// string (e.g. "30s", "5m") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an environment variable parsed as an int or returns a
// default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
