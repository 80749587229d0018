package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Model provider
	LLMProvider    string // "openai" | "gemini"
	LLMConcurrent  int
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenAIEmbModel string
	GeminiAPIKey   string
	GeminiModel    string
	GeminiEmbModel string

	// Retrieval
	ChunkSize    int
	ChunkOverlap int
	RetrievalK   int

	// Storage
	StoragePath string
	StaticDir   string

	// Course profile
	CourseSettingsPath string

	// Frontend
	FrontendURL string
}

// Course holds the course-specific details the assistant weaves into its
// prompts. They live in a key=value settings file so instructors can edit
// them without touching the environment.
type Course struct {
	ClassName        string
	Professor        string
	Assistants       string
	ClassDescription string
	Instructions     string
	AssistantName    string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),

		LLMProvider:    getEnvOrDefault("LLM_PROVIDER", "openai"),
		LLMConcurrent:  getEnvAsIntOrDefault("LLM_CONCURRENT_REQUESTS", 5),
		OpenAIAPIKey:   getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:    getEnvOrDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbModel: getEnvOrDefault("OPENAI_EMBED_MODEL", "text-embedding-3-small"),
		GeminiAPIKey:   getEnvOrDefault("GEMINI_API_KEY", ""),
		GeminiModel:    getEnvOrDefault("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
		GeminiEmbModel: getEnvOrDefault("GEMINI_EMBED_MODEL", "text-embedding-004"),

		ChunkSize:    getEnvAsIntOrDefault("CHUNK_SIZE", 200),
		ChunkOverlap: getEnvAsIntOrDefault("CHUNK_OVERLAP", 100),
		RetrievalK:   getEnvAsIntOrDefault("RETRIEVAL_K", 3),

		StoragePath:        getEnvOrDefault("STORAGE_PATH", "./uploads"),
		StaticDir:          getEnvOrDefault("STATIC_DIR", "web/static"),
		CourseSettingsPath: getEnvOrDefault("COURSE_SETTINGS_PATH", "settings.txt"),
		FrontendURL:        getEnvOrDefault("FRONTEND_URL", "http://localhost:8080"),
	}

	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			panic("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			panic("GEMINI_API_KEY is required when LLM_PROVIDER=gemini")
		}
	default:
		panic(fmt.Sprintf("unknown LLM_PROVIDER %q (want openai or gemini)", cfg.LLMProvider))
	}

	return cfg
}

// LoadCourse reads the course profile from the settings file. A missing file
// is not fatal: the assistant falls back to generic prompts.
func LoadCourse(path string) *Course {
	course := &Course{AssistantName: "Virtual Assistant"}

	values, err := godotenv.Read(path)
	if err != nil {
		return course
	}

	if v := values["classname"]; v != "" {
		course.ClassName = v
	}
	if v := values["professor"]; v != "" {
		course.Professor = v
	}
	if v := values["assistants"]; v != "" {
		course.Assistants = v
	}
	if v := values["classdescription"]; v != "" {
		course.ClassDescription = v
	}
	if v := values["instructions"]; v != "" {
		course.Instructions = v
	}
	if v := values["assistantname"]; v != "" {
		course.AssistantName = v
	}

	return course
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
