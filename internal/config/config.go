package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	VectorStorePinecone = "pinecone"
	VectorStoreSQLite   = "sqlite"
)

// DeploymentVars are the variables a hosted deployment is expected to set.
var DeploymentVars = []string{"OPENAI_API_KEY", "PINECONE_API_KEY", "PINECONE_ENVIRONMENT", "PINECONE_INDEX_NAME"}

type Config struct {
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	GeminiAPIKey        string
	PineconeAPIKey      string
	PineconeEnvironment string
	PineconeIndexName   string

	LLMProvider        string
	VectorStore        string
	ChatModel          string
	ToneModel          string
	EmbeddingModel     string
	EmbeddingDimension int
	EmbedRateLimit     float64

	DatabaseURL       string
	KnowledgeBasePath string
	HTTPPort          string
	LogLevel          string
	LogFile           string
	JWTSecret         string
}

// Load reads .env (when present) and the process environment. The second
// return value reports whether a .env file was found.
func Load() (Config, bool) {
	dotenv := godotenv.Load() == nil

	cfg := Config{
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		PineconeAPIKey:      getEnv("PINECONE_API_KEY", ""),
		PineconeEnvironment: getEnv("PINECONE_ENVIRONMENT", ""),
		PineconeIndexName:   getEnv("PINECONE_INDEX_NAME", "support-knowledge-base"),

		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
		VectorStore:        strings.ToLower(getEnv("VECTOR_STORE", VectorStorePinecone)),
		ChatModel:          getEnv("CHAT_MODEL", ""),
		ToneModel:          getEnv("TONE_MODEL", ""),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", ""),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
		EmbedRateLimit:     getEnvAsFloat("EMBED_RATE_LIMIT", 10),

		DatabaseURL:       getEnv("DATABASE_URL", "support_copilot.db"),
		KnowledgeBasePath: getEnv("KNOWLEDGE_BASE_PATH", "data/knowledge_base/sample_docs.txt"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		LogLevel:          getEnv("LOG_LEVEL", "INFO"),
		LogFile:           getEnv("LOG_FILE", "support_copilot.log"),
		JWTSecret:         getEnv("JWT_SECRET", ""),
	}
	return cfg, dotenv
}

// Validate checks that every variable required by the selected provider and
// vector store is set, reporting all missing names at once.
func (c Config) Validate() error {
	var missing []string

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.VectorStore {
	case VectorStorePinecone:
		if c.PineconeAPIKey == "" {
			missing = append(missing, "PINECONE_API_KEY")
		}
	case VectorStoreSQLite:
	default:
		return fmt.Errorf("unknown VECTOR_STORE %q", c.VectorStore)
	}

	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	if c.EmbeddingDimension <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSION must be positive, got %d", c.EmbeddingDimension)
	}
	return nil
}

// CheckDeployment returns the deployment variables that are not set.
func CheckDeployment() []string {
	var missing []string
	for _, name := range DeploymentVars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
