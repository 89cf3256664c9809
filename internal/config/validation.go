package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	// 0. Check for nil config (defensive programming)
	if c == nil {
		return ErrConfigNil
	}

	// 1. Embedding provider validation
	validProviders := []string{ProviderGemini, ProviderOpenAI}
	if !slices.Contains(validProviders, c.Provider) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidProvider, c.Provider, validProviders)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Dimension upper bound is the pgvector HNSW index limit.
	// The bundled migration provisions vector(768); changing the dimension
	// requires a matching migration.
	if c.EmbeddingDimension < 1 || c.EmbeddingDimension > MaxEmbeddingDimension {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidDimension, MaxEmbeddingDimension, c.EmbeddingDimension)
	}

	// 2. API key validation (per selected provider)
	switch c.Provider {
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
				"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
				ErrMissingAPIKey)
		}
	case ProviderOpenAI:
		// Self-hosted OpenAI-compatible endpoints (Ollama) run without a key.
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "https://api.openai.com/v1" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required "+
				"when using the hosted OpenAI endpoint", ErrMissingAPIKey)
		}
	}

	// 3. Search configuration validation
	if c.RRFK < 1 || c.RRFK > 1000 {
		return fmt.Errorf("%w: must be between 1 and 1000, got %d", ErrInvalidRRFK, c.RRFK)
	}

	if c.SearchLimit < 1 || c.SearchLimit > MaxSearchLimit {
		return fmt.Errorf("%w: must be between 1 and %d, got %d",
			ErrInvalidSearchLimit, MaxSearchLimit, c.SearchLimit)
	}

	// 4. PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}

	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}

	// Warn if using default dev password (but don't block - user might be in dev)
	if c.PostgresPassword == "rankfuse_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Validate password strength (minimum 8 characters)
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// 5. PostgreSQL SSL mode validation
	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if c.PostgresSSLMode == "" {
		return fmt.Errorf("%w: postgres_ssl_mode is empty (should have default from setDefaults)",
			ErrInvalidPostgresSSLMode)
	}

	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v\n"+
			"Note: 'allow' and 'prefer' modes are deprecated (vulnerable to MITM attacks)",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
