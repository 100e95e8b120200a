package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Log      LogConfig
	OCR      OCRConfig
	LLM      LLMConfig
	Archive  ArchiveConfig
}

// DatabaseConfig holds the extraction run log settings. An empty DSN disables the run log.
type DatabaseConfig struct {
	Driver           string // "postgres" | "sqlite"
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	RequestTimeout time.Duration
	CORSOrigins    []string
}

type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // text | json
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Engine      string // "tesseract" (CLI) | "gosseract"
	Rasterizer  string // "fitz" | "pdftoppm"
	Tesseract   string
	Pdftoppm    string
	TessdataDir string
	Lang        string
	DPI         int
	MaxPages    int
	Workers     int
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model        string
	APIKey       string
	BaseURL      string
	Temperature  float32
	Timeout      time.Duration
	AttachImages bool
}

// ArchiveConfig holds the object store settings for renamed evidence. Empty endpoint disables it.
type ArchiveConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// LoadConfig loads an optional .env file, then reads configuration from environment variables.
func LoadConfig() *Config {
	for _, f := range []string{".env", "../.env"} {
		if err := godotenv.Load(f); err == nil {
			break
		}
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:           getEnv("DB_DRIVER", "postgres"),
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8000"),
			GRPCAddr:       getEnv("GRPC_ADDR", ":8081"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 3*time.Minute),
			CORSOrigins:    getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		OCR: OCRConfig{
			Engine:      getEnv("OCR_ENGINE", "tesseract"),
			Rasterizer:  getEnv("PDF_RASTERIZER", "fitz"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			Lang:        getEnv("OCR_LANG", "eng"),
			DPI:         getEnvAsInt("OCR_DPI", 150),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 0),
			Workers:     getEnvAsInt("OCR_WORKERS", 4),
		},
		LLM: LLMConfig{
			Model:        getEnv("LLM_MODEL", getEnv("OPENAI_MODEL", "gpt-4o-mini")),
			APIKey:       getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			Temperature:  getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:      getEnvAsDuration("LLM_TIMEOUT", 90*time.Second),
			AttachImages: getEnvAsBool("LLM_ATTACH_IMAGES", true),
		},
		Archive: ArchiveConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			Region:    getEnv("MINIO_REGION", "us-east-1"),
			Bucket:    getEnv("MINIO_BUCKET", "relief-evidence"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, p := range strings.Split(value, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_KEY (or OPENAI_API_KEY) is required", ErrInvalidInput)
	}
	if c.LLM.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "LLM_TIMEOUT must be positive", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.OCR.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_WORKERS must be positive", ErrInvalidInput)
	}
	switch c.OCR.Engine {
	case "tesseract", "gosseract":
	default:
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be tesseract or gosseract", ErrInvalidInput)
	}
	switch c.OCR.Rasterizer {
	case "fitz", "pdftoppm":
	default:
		return NewAppError("CONFIG_ERROR", "PDF_RASTERIZER must be fitz or pdftoppm", ErrInvalidInput)
	}
	if c.Database.DSN != "" && c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be postgres or sqlite", ErrInvalidInput)
	}
	return nil
}
