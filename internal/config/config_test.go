package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// setTestEnv points HOME at a temp directory, supplies a test API key, and
// clears DATABASE_URL so Load observes only what the test sets up.
// Registered cleanups restore everything.
func setTestEnv(t *testing.T) string {
	t.Helper()
	viper.Reset()

	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("GEMINI_API_KEY", "test-api-key")

	if original, ok := os.LookupEnv("DATABASE_URL"); ok {
		os.Unsetenv("DATABASE_URL")
		t.Cleanup(func() { _ = os.Setenv("DATABASE_URL", original) })
	}

	return tmpDir
}

// writeConfigFile writes a config.yaml under HOME/.rankfuse.
func writeConfigFile(t *testing.T, home, content string) {
	t.Helper()
	configDir := filepath.Join(home, ".rankfuse")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		t.Fatalf("creating config dir: %v", err)
	}
	configPath := filepath.Join(configDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	setTestEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Provider != ProviderGemini {
		t.Errorf("expected default Provider %q, got %q", ProviderGemini, cfg.Provider)
	}

	if cfg.EmbedderModel != DefaultEmbedderModel {
		t.Errorf("expected default EmbedderModel %q, got %q", DefaultEmbedderModel, cfg.EmbedderModel)
	}

	if cfg.EmbeddingDimension != DefaultEmbeddingDimension {
		t.Errorf("expected default EmbeddingDimension %d, got %d", DefaultEmbeddingDimension, cfg.EmbeddingDimension)
	}

	if cfg.RRFK != DefaultRRFK {
		t.Errorf("expected default RRFK %d, got %d", DefaultRRFK, cfg.RRFK)
	}

	if cfg.SearchLimit != DefaultSearchLimit {
		t.Errorf("expected default SearchLimit %d, got %d", DefaultSearchLimit, cfg.SearchLimit)
	}

	if cfg.PostgresHost != "localhost" {
		t.Errorf("expected default PostgresHost 'localhost', got %q", cfg.PostgresHost)
	}

	if cfg.PostgresPort != 5432 {
		t.Errorf("expected default PostgresPort 5432, got %d", cfg.PostgresPort)
	}

	if cfg.PostgresUser != "rankfuse" {
		t.Errorf("expected default PostgresUser 'rankfuse', got %q", cfg.PostgresUser)
	}

	if cfg.PostgresDBName != "rankfuse" {
		t.Errorf("expected default PostgresDBName 'rankfuse', got %q", cfg.PostgresDBName)
	}

	if cfg.Tracing.Enabled {
		t.Error("expected tracing disabled by default")
	}

	if cfg.Tracing.Endpoint != "localhost:4318" {
		t.Errorf("expected default tracing endpoint 'localhost:4318', got %q", cfg.Tracing.Endpoint)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("expected default LogLevel 'info', got %q", cfg.LogLevel)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := setTestEnv(t)

	writeConfigFile(t, home, `
embedder_model: text-embedding-005
rrf_k: 30
search_limit: 10
postgres_host: db.internal
postgres_port: 5433
log_level: debug
`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.EmbedderModel != "text-embedding-005" {
		t.Errorf("expected EmbedderModel 'text-embedding-005', got %q", cfg.EmbedderModel)
	}

	if cfg.RRFK != 30 {
		t.Errorf("expected RRFK 30, got %d", cfg.RRFK)
	}

	if cfg.SearchLimit != 10 {
		t.Errorf("expected SearchLimit 10, got %d", cfg.SearchLimit)
	}

	if cfg.PostgresHost != "db.internal" {
		t.Errorf("expected PostgresHost 'db.internal', got %q", cfg.PostgresHost)
	}

	if cfg.PostgresPort != 5433 {
		t.Errorf("expected PostgresPort 5433, got %d", cfg.PostgresPort)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected LogLevel 'debug', got %q", cfg.LogLevel)
	}

	// Values absent from the file keep their defaults.
	if cfg.EmbeddingDimension != DefaultEmbeddingDimension {
		t.Errorf("expected default EmbeddingDimension %d, got %d", DefaultEmbeddingDimension, cfg.EmbeddingDimension)
	}
}

// TestSentinelErrors verifies sentinel errors are distinct and match themselves.
func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrConfigNil,
		ErrMissingAPIKey,
		ErrInvalidProvider,
		ErrInvalidEmbedderModel,
		ErrInvalidDimension,
		ErrInvalidRRFK,
		ErrInvalidSearchLimit,
		ErrInvalidPostgresHost,
		ErrInvalidPostgresPort,
		ErrInvalidPostgresDBName,
		ErrInvalidPostgresPassword,
		ErrInvalidPostgresSSLMode,
	}

	for i, err := range sentinels {
		if !errors.Is(err, err) {
			t.Errorf("sentinel %d does not match itself", i)
		}
		for j, other := range sentinels {
			if i != j && errors.Is(err, other) {
				t.Errorf("sentinel %d unexpectedly matches sentinel %d", i, j)
			}
		}
	}
}

func TestConfigDirectoryCreation(t *testing.T) {
	home := setTestEnv(t)

	if _, err := Load(); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	configDir := filepath.Join(home, ".rankfuse")
	info, err := os.Stat(configDir)
	if err != nil {
		t.Fatalf("expected .rankfuse directory to exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("expected .rankfuse to be a directory")
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	home := setTestEnv(t)

	// Environment beats the config file.
	writeConfigFile(t, home, `log_level: warn`)
	t.Setenv("RANKFUSE_LOG_LEVEL", "debug")
	t.Setenv("RANKFUSE_EMBEDDER_MODEL", "text-embedding-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("expected env override LogLevel 'debug', got %q", cfg.LogLevel)
	}

	if cfg.EmbedderModel != "text-embedding-env" {
		t.Errorf("expected env override EmbedderModel 'text-embedding-env', got %q", cfg.EmbedderModel)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	home := setTestEnv(t)

	writeConfigFile(t, home, "embedder_model: [unclosed")

	if _, err := Load(); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoadInvalidConfigValues(t *testing.T) {
	home := setTestEnv(t)

	// Well-formed YAML carrying an out-of-range value fails validation.
	writeConfigFile(t, home, "rrf_k: -5")

	_, err := Load()
	if !errors.Is(err, ErrInvalidRRFK) {
		t.Errorf("Load() error = %v, want ErrInvalidRRFK", err)
	}
}

func TestConfig_MarshalJSON_MasksSensitiveFields(t *testing.T) {
	cfg := Config{
		Provider:         ProviderGemini,
		EmbedderModel:    DefaultEmbedderModel,
		GeminiAPIKey:     "AIzaSuperSecretGeminiKey123",
		OpenAIAPIKey:     "sk-anothersecretkey456",
		PostgresPassword: "supersecretpassword123",
		PostgresHost:     "localhost",
		PostgresPort:     5432,
		PostgresUser:     "rankfuse",
		PostgresDBName:   "rankfuse",
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	jsonStr := string(data)

	for _, secret := range []string{
		"supersecretpassword123",
		"AIzaSuperSecretGeminiKey123",
		"sk-anothersecretkey456",
	} {
		if strings.Contains(jsonStr, secret) {
			t.Errorf("SECURITY: raw secret %q found in JSON output", secret)
		}
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	for _, field := range []string{"postgres_password", "gemini_api_key", "openai_api_key"} {
		masked, ok := result[field].(string)
		if !ok {
			t.Fatalf("%s should be a string in JSON output", field)
		}
		if !strings.Contains(masked, maskedValue) {
			t.Errorf("%s should contain %q, got: %s", field, maskedValue, masked)
		}
	}

	// Non-sensitive fields pass through unmasked.
	if !strings.Contains(jsonStr, "localhost") {
		t.Error("non-sensitive field PostgresHost should not be masked")
	}
	if !strings.Contains(jsonStr, DefaultEmbedderModel) {
		t.Error("non-sensitive field EmbedderModel should not be masked")
	}
}

func TestConfig_MarshalJSON_EmptyPassword(t *testing.T) {
	cfg := Config{PostgresPassword: ""}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["postgres_password"] != "" {
		t.Errorf("expected empty password to remain empty, got %v", result["postgres_password"])
	}
}

func TestConfig_MarshalJSON_ShortPassword(t *testing.T) {
	cfg := Config{PostgresPassword: "abc123"}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	// Short secrets are fully masked: partial reveal of a 6-char password
	// would leak most of it.
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}

	if result["postgres_password"] != maskedValue {
		t.Errorf("expected short password fully masked to %q, got %v", maskedValue, result["postgres_password"])
	}
}

func TestConfig_String_MasksSensitiveFields(t *testing.T) {
	cfg := Config{
		PostgresPassword: "stringer_secret_password",
		GeminiAPIKey:     "stringer_secret_key",
	}

	s := cfg.String()
	if strings.Contains(s, "stringer_secret_password") {
		t.Error("String() leaked PostgresPassword")
	}
	if strings.Contains(s, "stringer_secret_key") {
		t.Error("String() leaked GeminiAPIKey")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"short fully masked", "secret", maskedValue},
		{"exactly 8 chars fully masked", "12345678", maskedValue},
		{"long shows edges", "my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
