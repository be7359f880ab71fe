package openaiapi

import "strings"

// DefaultMaxToolIterations caps the tool-calling loop. The value is a
// policy default inherited from operational experience, exposed here so
// deployments can tune it.
const DefaultMaxToolIterations = 8

// Config holds the OpenAI-compatible API provider configuration.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string

	// MaxToolIterations bounds the tool-calling loop. Zero means the
	// default of 8.
	MaxToolIterations int
}

// defaults fills zero-valued fields.
func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.MaxToolIterations <= 0 {
		c.MaxToolIterations = DefaultMaxToolIterations
	}
}
