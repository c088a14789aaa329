package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App    AppConfig
	Agents AgentsConfig
	Corpus CorpusConfig
	Ai     AIConfig
}

type AppConfig struct {
	Port         string
	Environment  string
	LogFilePath  string
	BusTransport string // "gochannel" or "nats"
	NatsURL      string
}

type AgentsConfig struct {
	CoordinatorAddr string
	ResearcherAddr  string
	VerifierAddr    string
	AwaitTimeout    time.Duration
}

type CorpusConfig struct {
	Dir        string
	TopK       int
	ChunkChars int
	Overlap    int
}

type AIConfig struct {
	LLMProvider   string // "ollama", "openai"
	LLMModel      string // e.g. "llama3", "gpt-4o-mini"
	OllamaBaseURL string
	OpenAIAPIKey  string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:         getEnv("APP_PORT", "3000"),
			Environment:  getEnv("GO_ENV", "development"),
			LogFilePath:  getEnv("LOG_FILE_PATH", "logs/ma_assistant.log"),
			BusTransport: getEnv("BUS_TRANSPORT", "gochannel"),
			NatsURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Agents: AgentsConfig{
			CoordinatorAddr: getEnv("COORDINATOR_ADDR", "coordinator"),
			ResearcherAddr:  getEnv("RESEARCHER_ADDR", "researcher"),
			VerifierAddr:    getEnv("VERIFIER_ADDR", "verifier"),
			AwaitTimeout:    time.Duration(getEnvAsInt("AWAIT_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Corpus: CorpusConfig{
			Dir:        getEnv("CORPUS_DIR", "./data/corpus"),
			TopK:       getEnvAsInt("TOP_K", 5),
			ChunkChars: getEnvAsInt("CHUNK_CHARS", 900),
			Overlap:    getEnvAsInt("CHUNK_OVERLAP", 150),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:      getEnv("LLM_MODEL", "llama3"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
