package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test default values
	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}

	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}

	if cfg.ServerName != "mcp-pdf-forms" {
		t.Errorf("Expected default server name to be 'mcp-pdf-forms', got '%s'", cfg.ServerName)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level to be 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}

	thresholds := []struct {
		name string
		got  float64
		want float64
	}{
		{"ScanTextThreshold", float64(cfg.ScanTextThreshold), 100},
		{"InferenceFloor", cfg.InferenceFloor, 0.80},
		{"AutoChooseFloor", cfg.AutoChooseFloor, 0.60},
		{"MaxCandidates", float64(cfg.MaxCandidates), 3},
		{"HighTier", cfg.HighTier, 0.92},
		{"MediumTier", cfg.MediumTier, 0.80},
		{"LowFloor", cfg.LowFloor, 0},
		{"SemanticWeight", cfg.SemanticWeight, 0.7},
		{"OCRWorkers", float64(cfg.OCRWorkers), 2},
		{"RenderDPI", cfg.RenderDPI, 144},
	}
	for _, th := range thresholds {
		if th.got != th.want {
			t.Errorf("Expected default %s to be %g, got %g", th.name, th.want, th.got)
		}
	}

	if !cfg.EnableOCR {
		t.Error("Expected OCR to be enabled by default")
	}
	if cfg.OCRTimeout != 30*time.Second {
		t.Errorf("Expected default OCR timeout to be 30s, got %s", cfg.OCRTimeout)
	}
	if cfg.DropLow || cfg.IncludeUnknown {
		t.Error("Expected DropLow and IncludeUnknown to be off by default")
	}
	if cfg.DefaultProvider != "" {
		t.Errorf("Expected local extraction by default, got provider %q", cfg.DefaultProvider)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config - stdio mode",
			modify: func(*Config) {},
		},
		{
			name:   "valid config - server mode",
			modify: func(c *Config) { c.Mode = ModeServer },
		},
		{
			name:    "invalid mode",
			modify:  func(c *Config) { c.Mode = "invalid" },
			wantErr: "mode must be either",
		},
		{
			name:    "invalid port - too low (server mode)",
			modify:  func(c *Config) { c.Mode = ModeServer; c.Port = 0 },
			wantErr: "port must be between",
		},
		{
			name:    "invalid port - too high (server mode)",
			modify:  func(c *Config) { c.Mode = ModeServer; c.Port = 70000 },
			wantErr: "port must be between",
		},
		{
			name:   "invalid port ignored in stdio mode",
			modify: func(c *Config) { c.Port = 0 },
		},
		{
			name:    "invalid max file size",
			modify:  func(c *Config) { c.MaxFileSize = 0 },
			wantErr: "maximum file size",
		},
		{
			name:    "negative scan threshold",
			modify:  func(c *Config) { c.ScanTextThreshold = -1 },
			wantErr: "scan text threshold",
		},
		{
			name:    "no candidates",
			modify:  func(c *Config) { c.MaxCandidates = 0 },
			wantErr: "max candidates",
		},
		{
			name:    "inference floor above one",
			modify:  func(c *Config) { c.InferenceFloor = 1.5 },
			wantErr: "inference floor must be between 0 and 1",
		},
		{
			name:    "negative semantic weight",
			modify:  func(c *Config) { c.SemanticWeight = -0.1 },
			wantErr: "semantic weight",
		},
		{
			name:    "medium tier above high tier",
			modify:  func(c *Config) { c.MediumTier = 0.95 },
			wantErr: "medium tier cannot exceed high tier",
		},
		{
			name:    "low floor above medium tier",
			modify:  func(c *Config) { c.LowFloor = 0.85 },
			wantErr: "low floor cannot exceed medium tier",
		},
		{
			name:    "no OCR workers",
			modify:  func(c *Config) { c.OCRWorkers = 0 },
			wantErr: "OCR workers",
		},
		{
			name:    "zero OCR timeout",
			modify:  func(c *Config) { c.OCRTimeout = 0 },
			wantErr: "OCR timeout",
		},
		{
			name:    "zero render DPI",
			modify:  func(c *Config) { c.RenderDPI = 0 },
			wantErr: "render DPI",
		},
		{
			name:   "known provider",
			modify: func(c *Config) { c.DefaultProvider = "textract" },
		},
		{
			name:    "unknown provider",
			modify:  func(c *Config) { c.DefaultProvider = "azure" },
			wantErr: "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Config.Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Config.Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{
		Host: "192.168.1.1",
		Port: 9090,
	}

	expected := "192.168.1.1:9090"
	if got := cfg.Address(); got != expected {
		t.Errorf("Config.Address() = %v, want %v", got, expected)
	}
}

func TestConfigIsDebug(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		want     bool
	}{
		{name: "debug level", logLevel: "debug", want: true},
		{name: "info level", logLevel: "info", want: false},
		{name: "warn level", logLevel: "warn", want: false},
		{name: "error level", logLevel: "error", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			if got := cfg.IsDebug(); got != tt.want {
				t.Errorf("Config.IsDebug() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigString(t *testing.T) {
	cfg := &Config{
		Mode:         "server",
		Host:         "localhost",
		Port:         8080,
		LogLevel:     "debug",
		MaxFileSize:  1024,
		GeminiAPIKey: "AIza-secret",
	}

	result := cfg.String()

	expectedSubstrings := []string{
		"Mode: server",
		"Host: localhost",
		"Port: 8080",
		"LogLevel: debug",
		"MaxFileSize: 1024",
		"GeminiKey: set",
		"EmbeddingKey: unset",
	}

	for _, substr := range expectedSubstrings {
		if !strings.Contains(result, substr) {
			t.Errorf("Config.String() result doesn't contain expected substring: %s\nGot: %s", substr, result)
		}
	}
	if strings.Contains(result, "AIza-secret") {
		t.Errorf("Config.String() leaked a secret: %s", result)
	}
}

func TestConfigValidateLogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error"}
	invalidLevels := []string{"DEBUG", "INFO", "trace", "fatal", ""}

	// Test valid log levels
	for _, level := range validLevels {
		t.Run("valid_"+level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level

			if err := cfg.Validate(); err != nil {
				t.Errorf("Config.Validate() should accept log level '%s', got error: %v", level, err)
			}
		})
	}

	// Test invalid log levels
	for _, level := range invalidLevels {
		t.Run("invalid_"+level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.LogLevel = level

			if err := cfg.Validate(); err == nil {
				t.Errorf("Config.Validate() should reject log level '%s'", level)
			}
		})
	}
}

func TestConfigIsServerMode(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want bool
	}{
		{name: "server mode", mode: "server", want: true},
		{name: "stdio mode", mode: "stdio", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Mode: tt.mode}
			if got := cfg.IsServerMode(); got != tt.want {
				t.Errorf("Config.IsServerMode() = %v, want %v", got, tt.want)
			}
			if got := cfg.IsStdioMode(); got == tt.want {
				t.Errorf("Config.IsStdioMode() = %v, want %v", got, !tt.want)
			}
		})
	}
}
