package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Default values
	DefaultPort        = 8080
	DefaultHost        = "127.0.0.1"
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB

	// EnvPrefix prefixes every environment variable read by the server
	EnvPrefix = "MCP_FORMS"
)

// ErrVersionRequested is returned by Load when --version is on the command line
var ErrVersionRequested = errors.New("version requested")

// Providers accepted by DefaultProvider; empty selects the local pipeline
var knownProviders = map[string]bool{
	"":           true,
	"gemini":     true,
	"textract":   true,
	"documentai": true,
}

// Config holds all configuration for the form extraction MCP server
type Config struct {
	// Server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
	ConfigFile  string
	AllowedDir  string // parse_document paths must resolve inside it when set

	// Extraction thresholds
	ScanTextThreshold int     // average characters per page below which a PDF is scanned
	InferenceFloor    float64 // minimum fuzzy key similarity
	AutoChooseFloor   float64 // minimum confidence for a chosen candidate
	MaxCandidates     int
	IncludeUnknown    bool

	// Matching thresholds
	HighTier       float64
	MediumTier     float64
	LowFloor       float64
	DropLow        bool
	SemanticWeight float64

	// OCR
	EnableOCR  bool
	OCRTimeout time.Duration
	OCRWorkers int
	RenderDPI  float64

	// Embeddings
	EmbeddingURL    string
	EmbeddingModel  string
	EmbeddingAPIKey string

	// Cloud providers
	DefaultProvider     string
	GeminiAPIKey        string
	GeminiModel         string
	AWSRegion           string
	DocumentAIProject   string
	DocumentAILocation  string
	DocumentAIProcessor string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeStdio, // Default to stdio mode for MCP compatibility
		Host:        DefaultHost,
		Port:        DefaultPort,
		Version:     "1.0.0",
		ServerName:  "mcp-pdf-forms",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,

		ScanTextThreshold: 100,
		InferenceFloor:    0.80,
		AutoChooseFloor:   0.60,
		MaxCandidates:     3,
		IncludeUnknown:    false,

		HighTier:       0.92,
		MediumTier:     0.80,
		LowFloor:       0.0,
		DropLow:        false,
		SemanticWeight: 0.7,

		EnableOCR:  true,
		OCRTimeout: 30 * time.Second,
		OCRWorkers: 2,
		RenderDPI:  144,

		EmbeddingModel:     "text-embedding-3-small",
		GeminiModel:        "gemini-2.5-flash",
		DocumentAILocation: "us",
	}
}

// LoadFromFlags reads configuration from the process arguments
func LoadFromFlags() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a configuration from defaults, an optional config file,
// MCP_FORMS_* environment variables and args, in increasing precedence.
func Load(args []string) (*Config, error) {
	cfg, _, err := LoadWithArgs(args)
	return cfg, err
}

// LoadWithArgs is Load for commands that also take positional arguments,
// which are returned after flag parsing.
func LoadWithArgs(args []string) (*Config, []string, error) {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return nil, nil, ErrVersionRequested
		}
	}

	cfg := DefaultConfig()
	v := viper.New()
	setupViperEnvironment(v, cfg)

	flags := defineCommandLineFlags(cfg)
	if err := flags.Parse(args); err != nil {
		return nil, nil, err
	}
	if err := v.BindPFlags(flags); err != nil {
		return nil, nil, fmt.Errorf("binding flags: %w", err)
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
	}

	populateConfigFromViper(v, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, flags.Args(), nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Secrets come only from the environment or a config file. The vendor
	// variable names are accepted as fallbacks.
	_ = v.BindEnv("gemini-api-key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("embedding-api-key", EnvPrefix+"_EMBEDDING_API_KEY", "OPENAI_API_KEY")

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("max-file-size", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) *pflag.FlagSet {
	flags := pflag.NewFlagSet("mcp-pdf-forms", pflag.ContinueOnError)
	flags.Usage = func() { usage(flags) }

	flags.String("config", "", "Path to a YAML, JSON or TOML configuration file")
	flags.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for HTTP server")
	flags.String("host", cfg.Host, "Server host address (server mode only)")
	flags.Int("port", cfg.Port, "Server port (server mode only)")
	flags.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
	flags.String("allowed-dir", cfg.AllowedDir, "Only read documents inside this directory (empty allows any path)")

	flags.Int("scan-text-threshold", cfg.ScanTextThreshold, "Average characters per page below which a PDF is treated as scanned")
	flags.Float64("inference-floor", cfg.InferenceFloor, "Minimum fuzzy similarity for a label to match a canonical field")
	flags.Float64("auto-choose-floor", cfg.AutoChooseFloor, "Minimum confidence for the top candidate to be chosen")
	flags.Int("max-candidates", cfg.MaxCandidates, "Candidates kept per field")
	flags.Bool("include-unknown", cfg.IncludeUnknown, "Report pairs that match no canonical field as 'unknown'")

	flags.Float64("high-tier", cfg.HighTier, "Minimum match score for the high tier")
	flags.Float64("medium-tier", cfg.MediumTier, "Minimum match score for the medium tier")
	flags.Float64("low-floor", cfg.LowFloor, "Match scores at or below this are discarded")
	flags.Bool("drop-low", cfg.DropLow, "Discard low tier matches")
	flags.Float64("semantic-weight", cfg.SemanticWeight, "Weight of embedding similarity in the blended match score")

	flags.Bool("enable-ocr", cfg.EnableOCR, "Run OCR on scanned documents when an engine is configured")
	flags.Duration("ocr-timeout", cfg.OCRTimeout, "OCR time limit per page")
	flags.Int("ocr-workers", cfg.OCRWorkers, "Pages recognized concurrently")
	flags.Float64("render-dpi", cfg.RenderDPI, "Resolution of page images sent to OCR")

	flags.String("embedding-url", cfg.EmbeddingURL, "Base URL of an OpenAI compatible embeddings API (empty disables embeddings)")
	flags.String("embedding-model", cfg.EmbeddingModel, "Embedding model name")

	flags.String("provider", cfg.DefaultProvider, "Default cloud provider: gemini, textract or documentai (empty for local)")
	flags.String("gemini-model", cfg.GeminiModel, "Gemini model for OCR and cloud extraction")
	flags.String("aws-region", cfg.AWSRegion, "AWS region for Textract (empty disables Textract)")
	flags.String("documentai-project", cfg.DocumentAIProject, "Google Cloud project of the Document AI processor")
	flags.String("documentai-location", cfg.DocumentAILocation, "Document AI processor location")
	flags.String("documentai-processor", cfg.DocumentAIProcessor, "Document AI form parser processor ID")

	return flags
}

// usage prints the custom usage message
func usage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nMCP PDF Forms - A Model Context Protocol server that extracts form fields from PDF files\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flags.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s                                          # stdio mode (default)\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --mode=server --host=0.0.0.0 --port=8081  # server on all interfaces\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --config=forms.yaml                       # settings from a file\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  %s_<FLAG>              Any flag, upper-cased with '-' as '_'\n", EnvPrefix)
	fmt.Fprintf(os.Stderr, "  %s_GEMINI_API_KEY      Gemini API key (or GEMINI_API_KEY)\n", EnvPrefix)
	fmt.Fprintf(os.Stderr, "  %s_EMBEDDING_API_KEY   Embeddings API key (or OPENAI_API_KEY)\n", EnvPrefix)
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.ConfigFile = v.GetString("config")
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.LogLevel = v.GetString("log-level")
	cfg.MaxFileSize = v.GetInt64("max-file-size")
	cfg.AllowedDir = v.GetString("allowed-dir")

	cfg.ScanTextThreshold = v.GetInt("scan-text-threshold")
	cfg.InferenceFloor = v.GetFloat64("inference-floor")
	cfg.AutoChooseFloor = v.GetFloat64("auto-choose-floor")
	cfg.MaxCandidates = v.GetInt("max-candidates")
	cfg.IncludeUnknown = v.GetBool("include-unknown")

	cfg.HighTier = v.GetFloat64("high-tier")
	cfg.MediumTier = v.GetFloat64("medium-tier")
	cfg.LowFloor = v.GetFloat64("low-floor")
	cfg.DropLow = v.GetBool("drop-low")
	cfg.SemanticWeight = v.GetFloat64("semantic-weight")

	cfg.EnableOCR = v.GetBool("enable-ocr")
	cfg.OCRTimeout = v.GetDuration("ocr-timeout")
	cfg.OCRWorkers = v.GetInt("ocr-workers")
	cfg.RenderDPI = v.GetFloat64("render-dpi")

	cfg.EmbeddingURL = v.GetString("embedding-url")
	cfg.EmbeddingModel = v.GetString("embedding-model")
	cfg.EmbeddingAPIKey = v.GetString("embedding-api-key")

	cfg.DefaultProvider = v.GetString("provider")
	cfg.GeminiAPIKey = v.GetString("gemini-api-key")
	cfg.GeminiModel = v.GetString("gemini-model")
	cfg.AWSRegion = v.GetString("aws-region")
	cfg.DocumentAIProject = v.GetString("documentai-project")
	cfg.DocumentAILocation = v.GetString("documentai-location")
	cfg.DocumentAIProcessor = v.GetString("documentai-processor")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.ScanTextThreshold < 0 {
		return errors.New("scan text threshold cannot be negative")
	}
	if c.MaxCandidates < 1 {
		return errors.New("max candidates must be at least 1")
	}

	unit := []struct {
		name  string
		value float64
	}{
		{"inference floor", c.InferenceFloor},
		{"auto-choose floor", c.AutoChooseFloor},
		{"high tier", c.HighTier},
		{"medium tier", c.MediumTier},
		{"low floor", c.LowFloor},
		{"semantic weight", c.SemanticWeight},
	}
	for _, u := range unit {
		if u.value < 0 || u.value > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", u.name, u.value)
		}
	}
	if c.MediumTier > c.HighTier {
		return errors.New("medium tier cannot exceed high tier")
	}
	if c.LowFloor > c.MediumTier {
		return errors.New("low floor cannot exceed medium tier")
	}

	if c.OCRWorkers < 1 {
		return errors.New("OCR workers must be at least 1")
	}
	if c.OCRTimeout <= 0 {
		return errors.New("OCR timeout must be positive")
	}
	if c.RenderDPI <= 0 {
		return errors.New("render DPI must be positive")
	}

	if !knownProviders[c.DefaultProvider] {
		return fmt.Errorf("unknown provider: %s (must be one of: gemini, textract, documentai)", c.DefaultProvider)
	}

	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration. Secrets are
// reported only as set or unset.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, LogLevel: %s, MaxFileSize: %d, "+
		"EnableOCR: %t, Provider: %q, GeminiKey: %s, EmbeddingKey: %s}",
		c.Mode, c.Host, c.Port, c.LogLevel, c.MaxFileSize,
		c.EnableOCR, c.DefaultProvider, redact(c.GeminiAPIKey), redact(c.EmbeddingAPIKey))
}

func redact(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
