package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnvVars makes sure variables from the developer's shell cannot leak in
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"MCP_FORMS_MODE", "MCP_FORMS_HOST", "MCP_FORMS_PORT", "MCP_FORMS_LOG_LEVEL",
		"MCP_FORMS_MAX_FILE_SIZE", "MCP_FORMS_HIGH_TIER", "MCP_FORMS_OCR_TIMEOUT",
		"MCP_FORMS_GEMINI_API_KEY", "GEMINI_API_KEY", "MCP_FORMS_EMBEDDING_API_KEY", "OPENAI_API_KEY",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func TestLoad_DefaultConfig(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	want := DefaultConfig()
	if cfg.Mode != want.Mode || cfg.Host != want.Host || cfg.Port != want.Port {
		t.Errorf("Load() server settings = %s, want %s", cfg, want)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Load() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Load() MaxFileSize = %v, want %v", cfg.MaxFileSize, 100*1024*1024)
	}
	if cfg.HighTier != 0.92 || cfg.MediumTier != 0.80 {
		t.Errorf("Load() tiers = %g/%g, want 0.92/0.80", cfg.HighTier, cfg.MediumTier)
	}
	if cfg.OCRTimeout != 30*time.Second {
		t.Errorf("Load() OCRTimeout = %v, want 30s", cfg.OCRTimeout)
	}
	if !cfg.EnableOCR {
		t.Error("Load() EnableOCR should default to true")
	}
}

func TestLoad_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "server mode with custom host and port",
			args: []string{"--mode=server", "--host=0.0.0.0", "--port=9090"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Mode != "server" || cfg.Host != "0.0.0.0" || cfg.Port != 9090 {
					t.Errorf("got %s", cfg)
				}
			},
		},
		{
			name: "debug logging",
			args: []string{"--log-level=debug"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.LogLevel != "debug" {
					t.Errorf("LogLevel = %v, want debug", cfg.LogLevel)
				}
			},
		},
		{
			name: "custom max file size",
			args: []string{"--max-file-size=50000000"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.MaxFileSize != 50000000 {
					t.Errorf("MaxFileSize = %v, want 50000000", cfg.MaxFileSize)
				}
			},
		},
		{
			name: "matching thresholds",
			args: []string{"--high-tier=0.95", "--medium-tier=0.85", "--low-floor=0.5", "--drop-low"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.HighTier != 0.95 || cfg.MediumTier != 0.85 || cfg.LowFloor != 0.5 || !cfg.DropLow {
					t.Errorf("tiers = %g/%g/%g drop=%t", cfg.HighTier, cfg.MediumTier, cfg.LowFloor, cfg.DropLow)
				}
			},
		},
		{
			name: "ocr settings",
			args: []string{"--enable-ocr=false", "--ocr-timeout=5s", "--ocr-workers=4", "--render-dpi=200"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.EnableOCR || cfg.OCRTimeout != 5*time.Second || cfg.OCRWorkers != 4 || cfg.RenderDPI != 200 {
					t.Errorf("ocr = %t %v %d %g", cfg.EnableOCR, cfg.OCRTimeout, cfg.OCRWorkers, cfg.RenderDPI)
				}
			},
		},
		{
			name: "provider settings",
			args: []string{"--provider=documentai", "--documentai-project=proj", "--documentai-processor=abc"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.DefaultProvider != "documentai" || cfg.DocumentAIProject != "proj" ||
					cfg.DocumentAIProcessor != "abc" || cfg.DocumentAILocation != "us" {
					t.Errorf("documentai = %q %q %q %q", cfg.DefaultProvider, cfg.DocumentAIProject,
						cfg.DocumentAILocation, cfg.DocumentAIProcessor)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)

			cfg, err := Load(tt.args)
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("MCP_FORMS_MODE", "server")
	t.Setenv("MCP_FORMS_HOST", "192.168.1.1")
	t.Setenv("MCP_FORMS_PORT", "3000")
	t.Setenv("MCP_FORMS_LOG_LEVEL", "warn")
	t.Setenv("MCP_FORMS_MAX_FILE_SIZE", "200000000")
	t.Setenv("MCP_FORMS_OCR_TIMEOUT", "10s")
	t.Setenv("GEMINI_API_KEY", "from-vendor-variable")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("Load() Mode = %v, want %v", cfg.Mode, "server")
	}
	if cfg.Host != "192.168.1.1" {
		t.Errorf("Load() Host = %v, want %v", cfg.Host, "192.168.1.1")
	}
	if cfg.Port != 3000 {
		t.Errorf("Load() Port = %v, want %v", cfg.Port, 3000)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Load() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.MaxFileSize != 200000000 {
		t.Errorf("Load() MaxFileSize = %v, want %v", cfg.MaxFileSize, 200000000)
	}
	if cfg.OCRTimeout != 10*time.Second {
		t.Errorf("Load() OCRTimeout = %v, want 10s", cfg.OCRTimeout)
	}
	if cfg.GeminiAPIKey != "from-vendor-variable" {
		t.Errorf("Load() GeminiAPIKey = %q, want the GEMINI_API_KEY value", cfg.GeminiAPIKey)
	}
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("MCP_FORMS_MODE", "server")
	t.Setenv("MCP_FORMS_HOST", "192.168.1.1")
	t.Setenv("MCP_FORMS_PORT", "3000")

	cfg, err := Load([]string{"--mode=stdio", "--host=localhost", "--port=8888"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("Load() Mode = %v, want %v (should override env)", cfg.Mode, "stdio")
	}
	if cfg.Host != "localhost" {
		t.Errorf("Load() Host = %v, want %v (should override env)", cfg.Host, "localhost")
	}
	if cfg.Port != 8888 {
		t.Errorf("Load() Port = %v, want %v (should override env)", cfg.Port, 8888)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnvVars(t)

	path := filepath.Join(t.TempDir(), "forms.yaml")
	content := "high-tier: 0.9\nmedium-tier: 0.7\nmax-candidates: 5\nocr-timeout: 12s\naws-region: eu-west-1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	t.Setenv("MCP_FORMS_HIGH_TIER", "0.95")

	cfg, err := Load([]string{"--config=" + path, "--max-candidates=4"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.ConfigFile != path {
		t.Errorf("Load() ConfigFile = %q, want %q", cfg.ConfigFile, path)
	}
	if cfg.HighTier != 0.95 {
		t.Errorf("Load() HighTier = %g, want 0.95 (env overrides file)", cfg.HighTier)
	}
	if cfg.MediumTier != 0.7 {
		t.Errorf("Load() MediumTier = %g, want 0.7 from file", cfg.MediumTier)
	}
	if cfg.MaxCandidates != 4 {
		t.Errorf("Load() MaxCandidates = %d, want 4 (flag overrides file)", cfg.MaxCandidates)
	}
	if cfg.OCRTimeout != 12*time.Second {
		t.Errorf("Load() OCRTimeout = %v, want 12s", cfg.OCRTimeout)
	}
	if cfg.AWSRegion != "eu-west-1" {
		t.Errorf("Load() AWSRegion = %q, want eu-west-1", cfg.AWSRegion)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "invalid mode", args: []string{"--mode=invalid"}, wantErr: "mode must be either 'stdio' or 'server'"},
		{name: "invalid port", args: []string{"--mode=server", "--port=99999"}, wantErr: "port must be between 1 and 65535"},
		{name: "invalid log level", args: []string{"--log-level=invalid"}, wantErr: "invalid log level"},
		{name: "inverted tiers", args: []string{"--medium-tier=0.95"}, wantErr: "medium tier cannot exceed high tier"},
		{name: "unknown flag", args: []string{"--dir=/tmp"}, wantErr: "unknown flag"},
		{name: "missing config file", args: []string{"--config=/nonexistent/forms.yaml"}, wantErr: "reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)

			_, err := Load(tt.args)
			if err == nil {
				t.Fatalf("Load() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_VersionFlag(t *testing.T) {
	for _, arg := range []string{"--version", "-version", "-v"} {
		_, err := Load([]string{arg})
		if !errors.Is(err, ErrVersionRequested) {
			t.Errorf("Load(%q) error = %v, want ErrVersionRequested", arg, err)
		}
	}
}

func TestLoadWithArgs_Positional(t *testing.T) {
	clearEnvVars(t)

	cfg, rest, err := LoadWithArgs([]string{"--provider=textract", "form.pdf", "inputs.json"})
	if err != nil {
		t.Fatalf("LoadWithArgs() unexpected error: %v", err)
	}
	if cfg.DefaultProvider != "textract" {
		t.Errorf("LoadWithArgs() DefaultProvider = %q, want textract", cfg.DefaultProvider)
	}
	if len(rest) != 2 || rest[0] != "form.pdf" || rest[1] != "inputs.json" {
		t.Errorf("LoadWithArgs() args = %v, want [form.pdf inputs.json]", rest)
	}
}
