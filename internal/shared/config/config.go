package config

import (
	"log"
	"os"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Env             string
	Port            string
	CORSAllowOrigin []string
	DataStore       string
	DatabaseURL     string
	DynamoDBTable   string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	AnalysisSource  string
	SQSQueueURL     string
	LogLevel        string
	LogFile         string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	dataStore := normalizeDataStore(getEnv("DATA_STORE", defaultDataStore(dbURL)))

	if env == "production" && dataStore == DataStoreMemory {
		log.Printf("DATA_STORE=memory in production; process records will not survive restarts")
	}

	return Config{
		Env:             env,
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		DataStore:       dataStore,
		DatabaseURL:     dbURL,
		DynamoDBTable:   getEnv("DYNAMODB_TABLE", ""),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		AnalysisSource:  normalizeAnalysisSource(getEnv("ANALYSIS_SOURCE", AnalysisSourceOutput)),
		SQSQueueURL:     strings.TrimSpace(getEnv("SQS_QUEUE_URL", "")),
		LogLevel:        strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", "info"))),
		LogFile:         strings.TrimSpace(getEnv("LOG_FILE", "")),
	}
}

const (
	DataStoreMemory   = "memory"
	DataStorePostgres = "postgres"
	DataStoreDynamoDB = "dynamodb"

	AnalysisSourceOutput   = "output"
	AnalysisSourceTextract = "textract"
)

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func defaultDataStore(dbURL string) string {
	if strings.TrimSpace(dbURL) != "" {
		return DataStorePostgres
	}
	return DataStoreMemory
}

func normalizeDataStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return DataStorePostgres
	case "dynamodb", "dynamo":
		return DataStoreDynamoDB
	default:
		return DataStoreMemory
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeAnalysisSource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "textract", "api":
		return AnalysisSourceTextract
	default:
		return AnalysisSourceOutput
	}
}
