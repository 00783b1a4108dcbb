// Package generate renders the fetched model list into a provider
// configuration document for the downstream gateway.
package generate

import (
	"fmt"
	"time"

	"github.com/AbstergoSweden/VeniceAI/internal/catalog"
)

// Format selects the output document format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// ParseFormat maps an external string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatYAML:
		return FormatYAML, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown output format: %q", s)
}

const generatorName = "venice-sync/2.1"

// keyPlaceholder is written instead of the real key so generated
// configs stay safe to commit.
const keyPlaceholder = "${VENICE_API_KEY}"

// Generator renders provider configuration documents.
type Generator struct {
	baseURL   string
	apiKey    string
	embedKey  bool
	timestamp string
}

// New creates a Generator. The API key is only written to output when
// embedKey is set; otherwise an env-var placeholder is used.
func New(baseURL, apiKey string, embedKey bool) *Generator {
	return &Generator{
		baseURL:   baseURL,
		apiKey:    apiKey,
		embedKey:  embedKey,
		timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Generate renders models in the requested format.
func (g *Generator) Generate(models []catalog.Model, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return g.generateJSON(models)
	case FormatYAML:
		return g.generateYAML(models)
	}
	return nil, fmt.Errorf("unknown output format: %q", format)
}

func (g *Generator) keyValue() string {
	if g.embedKey {
		return g.apiKey
	}
	return keyPlaceholder
}

// FormatPrice renders a per-million-token price. An unpublished price
// ("N/A") stays visibly distinct from an explicit zero ("$0.00/M").
func FormatPrice(usd *float64) string {
	if usd == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f/M", *usd)
}

// FormatTokens renders a token count with a K/M suffix.
func FormatTokens(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.0fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}
