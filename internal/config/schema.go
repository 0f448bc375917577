package config

// Config holds pagecast configuration.
// Stored at: ~/.pagecast/config.yaml
type Config struct {
	Server   ServerCfg   `mapstructure:"server" yaml:"server"`
	OCR      OCRCfg      `mapstructure:"ocr" yaml:"ocr"`
	AI       AICfg       `mapstructure:"ai" yaml:"ai"`
	Pipeline PipelineCfg `mapstructure:"pipeline" yaml:"pipeline"`
	LogLevel string      `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"` // default 127.0.0.1
	Port string `mapstructure:"port" yaml:"port"` // default 8080
}

// OCRCfg configures the OCR engine used for scanned pages.
type OCRCfg struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	Language       string `mapstructure:"language" yaml:"language"`               // tesseract language code
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"`           // requests per minute
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // per-page timeout
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// AICfg configures the optional AI enhancement service.
type AICfg struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Model          string `mapstructure:"model" yaml:"model"`
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"` // override for compatible endpoints
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
}

// PipelineCfg configures job execution.
type PipelineCfg struct {
	Workers   int `mapstructure:"workers" yaml:"workers"`       // 0 means NumCPU
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"` // pending job capacity
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		OCR: OCRCfg{
			Enabled:        true,
			Language:       "eng",
			RateLimit:      150,
			TimeoutSeconds: 120,
			MaxRetries:     2,
		},
		AI: AICfg{
			APIKey:         "${OPENAI_API_KEY}",
			Model:          "gpt-4o-mini",
			RateLimit:      150,
			TimeoutSeconds: 60,
			MaxRetries:     2,
		},
		Pipeline: PipelineCfg{
			Workers:   0,
			QueueSize: 64,
		},
		LogLevel: "info",
	}
}
