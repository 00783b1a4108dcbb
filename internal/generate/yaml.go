package generate

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/AbstergoSweden/VeniceAI/internal/catalog"
)

type yamlDoc struct {
	Providers []yamlProvider `yaml:"providers"`
}

type yamlProvider struct {
	ID      string      `yaml:"id"`
	Name    string      `yaml:"name"`
	BaseURL string      `yaml:"base_url"`
	APIKeys yamlAPIKeys `yaml:"api_keys"`
	Models  []yamlModel `yaml:"models"`
}

type yamlAPIKeys struct {
	OpenAI string `yaml:"openai"`
}

type yamlModel struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Type      string        `yaml:"type"`
	Context   int           `yaml:"context"`
	Provider  string        `yaml:"provider"`
	Abilities yamlAbilities `yaml:"abilities"`
	Pricing   yamlPricing   `yaml:"pricing"`
}

type yamlAbilities struct {
	Temperature yamlAbility `yaml:"temperature"`
	Vision      yamlAbility `yaml:"vision"`
	Tools       yamlAbility `yaml:"tools"`
	WebSearch   yamlAbility `yaml:"web_search"`
	Reasoning   yamlAbility `yaml:"reasoning"`
	CodeOpt     yamlAbility `yaml:"code_optimized"`
	Schema      yamlAbility `yaml:"response_schema"`
}

type yamlAbility struct {
	Supported bool     `yaml:"supported"`
	Default   *float64 `yaml:"default,omitempty"`
}

// yamlPricing keeps unpublished prices as explicit nulls so downstream
// readers can tell "unknown" from "free".
type yamlPricing struct {
	InputPerMillion  *float64 `yaml:"input_per_million"`
	OutputPerMillion *float64 `yaml:"output_per_million"`
}

// generateYAML builds the document as a yaml.Node tree so each model
// carries its description as a head comment and a human-readable
// pricing note.
func (g *Generator) generateYAML(models []catalog.Model) ([]byte, error) {
	doc := yamlDoc{
		Providers: []yamlProvider{{
			ID:      "venice",
			Name:    "Venice.ai",
			BaseURL: g.baseURL,
			APIKeys: yamlAPIKeys{OpenAI: g.keyValue()},
			Models:  make([]yamlModel, 0, len(models)),
		}},
	}

	for _, m := range models {
		caps := m.Capabilities
		temp := m.DefaultTemperature
		doc.Providers[0].Models = append(doc.Providers[0].Models, yamlModel{
			ID:       m.ID,
			Name:     m.Name,
			Type:     string(m.Type),
			Context:  m.ContextTokens,
			Provider: "venice",
			Abilities: yamlAbilities{
				Temperature: yamlAbility{Supported: true, Default: &temp},
				Vision:      yamlAbility{Supported: caps.Vision},
				Tools:       yamlAbility{Supported: caps.FunctionCalling},
				WebSearch:   yamlAbility{Supported: caps.WebSearch},
				Reasoning:   yamlAbility{Supported: caps.Reasoning},
				CodeOpt:     yamlAbility{Supported: caps.CodeOptimized},
				Schema:      yamlAbility{Supported: caps.ResponseSchema},
			},
			Pricing: yamlPricing{
				InputPerMillion:  m.Pricing.InputUSD,
				OutputPerMillion: m.Pricing.OutputUSD,
			},
		})
	}

	var root yaml.Node
	if err := root.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}

	root.HeadComment = fmt.Sprintf("Venice.ai Provider Configuration\nGenerated: %s (UTC)\nModels: %d", g.timestamp, len(models))
	annotateModels(&root, models)

	out, err := yaml.Marshal(&root)
	if err != nil {
		return nil, fmt.Errorf("marshaling document: %w", err)
	}
	return append([]byte("---\n"), out...), nil
}

// annotateModels attaches per-model comments to the encoded node tree.
func annotateModels(root *yaml.Node, models []catalog.Model) {
	providers := mappingValue(root, "providers")
	if providers == nil || len(providers.Content) == 0 {
		return
	}
	modelsNode := mappingValue(providers.Content[0], "models")
	if modelsNode == nil {
		return
	}

	for i, modelNode := range modelsNode.Content {
		if i >= len(models) {
			break
		}
		m := models[i]
		modelNode.HeadComment = m.Description()
		if key := mappingKey(modelNode, "pricing"); key != nil {
			key.LineComment = fmt.Sprintf("%s in / %s out", FormatPrice(m.Pricing.InputUSD), FormatPrice(m.Pricing.OutputUSD))
		}
	}
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

// mappingKey returns the key node itself, for comment placement.
func mappingKey(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i]
		}
	}
	return nil
}
