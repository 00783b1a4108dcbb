package generate

import (
	"encoding/json"
	"fmt"

	"github.com/AbstergoSweden/VeniceAI/internal/catalog"
)

type jsonDoc struct {
	Metadata  jsonMetadata   `json:"metadata"`
	Providers []jsonProvider `json:"providers"`
}

type jsonMetadata struct {
	Generated  string `json:"generated"`
	Generator  string `json:"generator"`
	ModelCount int    `json:"model_count"`
}

type jsonProvider struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	BaseURL string      `json:"base_url"`
	APIKey  string      `json:"api_key"`
	Models  []jsonModel `json:"models"`
}

type jsonModel struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Type               string           `json:"type"`
	Context            int              `json:"context"`
	DefaultTemperature float64          `json:"default_temperature"`
	Capabilities       jsonCapabilities `json:"capabilities"`
	Pricing            jsonPricing      `json:"pricing"`
}

type jsonCapabilities struct {
	Vision         bool `json:"vision"`
	Reasoning      bool `json:"reasoning"`
	Tools          bool `json:"tools"`
	WebSearch      bool `json:"web_search"`
	CodeOptimized  bool `json:"code_optimized"`
	ResponseSchema bool `json:"response_schema"`
}

// jsonPricing renders unpublished prices as null, explicit zeros as 0.
type jsonPricing struct {
	InputPerMillion  *float64 `json:"input_per_million"`
	OutputPerMillion *float64 `json:"output_per_million"`
}

func (g *Generator) generateJSON(models []catalog.Model) ([]byte, error) {
	doc := jsonDoc{
		Metadata: jsonMetadata{
			Generated:  g.timestamp,
			Generator:  generatorName,
			ModelCount: len(models),
		},
		Providers: []jsonProvider{{
			ID:      "venice",
			Name:    "Venice.ai",
			BaseURL: g.baseURL,
			APIKey:  g.keyValue(),
			Models:  make([]jsonModel, 0, len(models)),
		}},
	}

	for _, m := range models {
		caps := m.Capabilities
		doc.Providers[0].Models = append(doc.Providers[0].Models, jsonModel{
			ID:                 m.ID,
			Name:               m.Name,
			Type:               string(m.Type),
			Context:            m.ContextTokens,
			DefaultTemperature: m.DefaultTemperature,
			Capabilities: jsonCapabilities{
				Vision:         caps.Vision,
				Reasoning:      caps.Reasoning,
				Tools:          caps.FunctionCalling,
				WebSearch:      caps.WebSearch,
				CodeOptimized:  caps.CodeOptimized,
				ResponseSchema: caps.ResponseSchema,
			},
			Pricing: jsonPricing{
				InputPerMillion:  m.Pricing.InputUSD,
				OutputPerMillion: m.Pricing.OutputUSD,
			},
		})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}
	return append(out, '\n'), nil
}
