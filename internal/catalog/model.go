package catalog

import (
	"fmt"
	"strings"
)

// ModelType partitions the Venice catalog.
type ModelType string

const (
	TypeText  ModelType = "text"
	TypeImage ModelType = "image"
	TypeCode  ModelType = "code"
	// TypeAll aggregates every concrete partition. It is a request-side
	// value only; no individual model carries it.
	TypeAll ModelType = "all"
)

// Defaults applied when the API omits or mangles a field.
const (
	DefaultContextTokens = 32768
	DefaultTemperature   = 0.7
)

// ParseModelType maps an external string to a ModelType.
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(strings.ToLower(s)) {
	case TypeText:
		return TypeText, nil
	case TypeImage:
		return TypeImage, nil
	case TypeCode:
		return TypeCode, nil
	case TypeAll:
		return TypeAll, nil
	}
	return "", fmt.Errorf("unknown model type: %q", s)
}

// FetchTypes returns the concrete partitions behind t, in fetch order.
func (t ModelType) FetchTypes() []ModelType {
	if t == TypeAll {
		return []ModelType{TypeText, TypeImage, TypeCode}
	}
	return []ModelType{t}
}

// Capabilities holds model capability flags.
type Capabilities struct {
	Vision          bool
	Reasoning       bool
	FunctionCalling bool
	WebSearch       bool
	CodeOptimized   bool
	ResponseSchema  bool
}

// List returns human labels for the enabled capabilities.
func (c Capabilities) List() []string {
	var caps []string
	if c.Vision {
		caps = append(caps, "Vision")
	}
	if c.Reasoning {
		caps = append(caps, "Reasoning")
	}
	if c.FunctionCalling {
		caps = append(caps, "Tools")
	}
	if c.WebSearch {
		caps = append(caps, "Web Search")
	}
	if c.CodeOptimized {
		caps = append(caps, "Code")
	}
	if c.ResponseSchema {
		caps = append(caps, "Structured Output")
	}
	return caps
}

// Pricing holds per-million-token prices in USD. A nil field means the
// API published no price, which is distinct from an explicit zero.
type Pricing struct {
	InputUSD  *float64
	OutputUSD *float64
}

// Model represents one model offered by the Venice API, immutable once
// parsed.
type Model struct {
	ID                 string
	Name               string
	Type               ModelType
	ContextTokens      int
	DefaultTemperature float64
	Capabilities       Capabilities
	Pricing            Pricing
}

// Description returns the display name annotated with enabled
// capabilities.
func (m Model) Description() string {
	caps := m.Capabilities.List()
	if len(caps) == 0 {
		return m.Name
	}
	return m.Name + " - " + strings.Join(caps, ", ")
}
