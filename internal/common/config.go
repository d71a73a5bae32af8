package common

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	OCR      OCRConfig      `yaml:"ocr"`
	Vision   VisionConfig   `yaml:"vision"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `yaml:"driver"` // sqlite | postgres
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string `yaml:"grpc_addr"`
	HTTPAddr       string `yaml:"http_addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
}

// OCRConfig holds OCR and external-tool configuration
type OCRConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Tesseract        string `yaml:"tesseract"`
	Pdftoppm         string `yaml:"pdftoppm"`
	TesseractLang    string `yaml:"tesseract_lang"`
	TessdataDir      string `yaml:"tessdata_dir"`
	PSM              int    `yaml:"psm"`
	OEM              int    `yaml:"oem"`
	HeicConverter    string `yaml:"heic_converter"`
	ArtifactCacheDir string `yaml:"artifact_cache_dir"`
}

// VisionConfig holds vision-model configuration. An empty Provider disables the tier.
type VisionConfig struct {
	Provider          string        `yaml:"provider"` // "" | openai | langchain
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxImageMB        int           `yaml:"max_image_mb"`
}

// PipelineConfig holds document pipeline tuning
type PipelineConfig struct {
	DPI              int           `yaml:"dpi"`
	MaxPages         int           `yaml:"max_pages"`
	Workers          int           `yaml:"workers"`
	ExtractorTimeout time.Duration `yaml:"extractor_timeout"`
	DirectText       bool          `yaml:"direct_text"`
	StrictEmpty      bool          `yaml:"strict_empty"`
	PDFRenderer      string        `yaml:"pdf_renderer"` // auto | poppler | embedded | none
}

var (
	databaseDrivers = []string{"sqlite", "postgres"}
	visionProviders = []string{"", "openai", "langchain"}
	pdfRenderers    = []string{"auto", "poppler", "embedded", "none"}
)

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:docproc.db?_pragma=foreign_keys(1)",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:       ":8080",
			HTTPAddr:       ":8081",
			MaxUploadBytes: 50 << 20,
		},
		OCR: OCRConfig{
			Enabled:          true,
			Tesseract:        "tesseract",
			Pdftoppm:         "pdftoppm",
			TesseractLang:    "eng",
			HeicConverter:    "magick",
			ArtifactCacheDir: "./tmp",
		},
		Vision: VisionConfig{
			Model:             "gpt-4o-mini",
			BaseURL:           "https://api.openai.com/v1",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 2,
			MaxImageMB:        8,
		},
		Pipeline: PipelineConfig{
			DPI:              200,
			Workers:          runtime.NumCPU(),
			ExtractorTimeout: 60 * time.Second,
			PDFRenderer:      "auto",
		},
	}
}

// LoadConfig loads configuration from environment variables on top of defaults
func LoadConfig() *Config {
	cfg := defaultConfig()
	cfg.applyEnv()
	return cfg
}

// LoadConfigFile reads a YAML file over the defaults; environment variables still win.
func LoadConfigFile(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewAppError(CodeConfig, fmt.Sprintf("read config %s", path), err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, NewAppError(CodeConfig, fmt.Sprintf("parse config %s", path), err)
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database.Driver = getEnv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("DB_URL", c.Database.DSN)
	c.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", c.Database.MaxConns)
	c.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", c.Database.MinConns)
	c.Database.MaxConnLifetime = getEnvAsDuration("DB_MAX_CONN_LIFETIME", c.Database.MaxConnLifetime)
	c.Database.MaxConnIdleTime = getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", c.Database.MaxConnIdleTime)
	c.Database.DialTimeout = getEnvAsDuration("DB_DIAL_TIMEOUT", c.Database.DialTimeout)
	c.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", c.Database.StatementTimeout)

	c.Server.GRPCAddr = getEnv("GRPC_ADDR", c.Server.GRPCAddr)
	c.Server.HTTPAddr = getEnv("HTTP_ADDR", c.Server.HTTPAddr)
	c.Server.MaxUploadBytes = getEnvAsInt64("MAX_UPLOAD_BYTES", c.Server.MaxUploadBytes)

	c.OCR.Enabled = getEnvAsBool("OCR_ENABLED", c.OCR.Enabled)
	c.OCR.Tesseract = getEnv("TESSERACT_BIN", c.OCR.Tesseract)
	c.OCR.Pdftoppm = getEnv("PDFTOPPM_BIN", c.OCR.Pdftoppm)
	c.OCR.TesseractLang = getEnv("TESSERACT_LANG", c.OCR.TesseractLang)
	c.OCR.TessdataDir = getEnv("TESSDATA_PREFIX", c.OCR.TessdataDir)
	c.OCR.PSM = getEnvAsInt("TESSERACT_PSM", c.OCR.PSM)
	c.OCR.OEM = getEnvAsInt("TESSERACT_OEM", c.OCR.OEM)
	c.OCR.HeicConverter = getEnv("HEIC_CONVERTER", c.OCR.HeicConverter)
	c.OCR.ArtifactCacheDir = getEnv("ARTIFACT_CACHE_DIR", c.OCR.ArtifactCacheDir)

	c.Vision.Provider = getEnv("VISION_PROVIDER", c.Vision.Provider)
	c.Vision.Model = getEnv("VISION_MODEL", c.Vision.Model)
	c.Vision.APIKey = getEnv("VISION_API_KEY", getEnv("OPENAI_API_KEY", c.Vision.APIKey))
	c.Vision.BaseURL = getEnv("VISION_BASE_URL", c.Vision.BaseURL)
	c.Vision.Temperature = getEnvAsFloat32("VISION_TEMPERATURE", c.Vision.Temperature)
	c.Vision.Timeout = getEnvAsDuration("VISION_TIMEOUT", c.Vision.Timeout)
	c.Vision.RequestsPerSecond = getEnvAsFloat64("VISION_RPS", c.Vision.RequestsPerSecond)
	c.Vision.MaxImageMB = getEnvAsInt("VISION_MAX_IMAGE_MB", c.Vision.MaxImageMB)

	c.Pipeline.DPI = getEnvAsInt("PIPELINE_DPI", c.Pipeline.DPI)
	c.Pipeline.MaxPages = getEnvAsInt("PIPELINE_MAX_PAGES", c.Pipeline.MaxPages)
	c.Pipeline.Workers = getEnvAsInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	c.Pipeline.ExtractorTimeout = getEnvAsDuration("PIPELINE_EXTRACTOR_TIMEOUT", c.Pipeline.ExtractorTimeout)
	c.Pipeline.DirectText = getEnvAsBool("PIPELINE_DIRECT_TEXT", c.Pipeline.DirectText)
	c.Pipeline.StrictEmpty = getEnvAsBool("PIPELINE_STRICT_EMPTY", c.Pipeline.StrictEmpty)
	c.Pipeline.PDFRenderer = getEnv("PIPELINE_PDF_RENDERER", c.Pipeline.PDFRenderer)
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

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	v := NewValidator().
		Field("database.driver", c.Database.Driver, OneOf(databaseDrivers...)).
		Field("database.dsn", c.Database.DSN, Required).
		Field("vision.provider", c.Vision.Provider, OneOf(visionProviders...)).
		Field("pipeline.pdf_renderer", c.Pipeline.PDFRenderer, OneOf(pdfRenderers...)).
		Field("pipeline.dpi", c.Pipeline.DPI, Positive).
		Field("pipeline.extractor_timeout", int(c.Pipeline.ExtractorTimeout), Positive)
	if c.Vision.Provider != "" {
		v.Field("vision.model", c.Vision.Model, Required)
		v.Field("vision.base_url", c.Vision.BaseURL, Required)
	}
	if err := v.Error(); err != nil {
		return NewAppError(CodeConfig, "invalid configuration", fmt.Errorf("%w: %w", ErrValidation, err))
	}
	return nil
}
