package catalog

import (
	"encoding/json"
	"strconv"
)

// Parse converts one raw API record into a Model. It returns nil when
// the record lacks a usable id; every other malformed field degrades to
// its default rather than failing the record.
//
// The record's own type wins over fallback when it names a known
// partition; anything else resolves to the partition the record was
// fetched under.
func Parse(raw map[string]any, fallback ModelType) *Model {
	id, ok := raw["id"].(string)
	if !ok || id == "" {
		return nil
	}

	spec := asMap(raw["model_spec"])

	typ := fallback
	if s, ok := raw["type"].(string); ok {
		switch ModelType(s) {
		case TypeText, TypeImage, TypeCode:
			typ = ModelType(s)
		}
	}

	name := id
	if s, ok := spec["name"].(string); ok && s != "" {
		name = s
	}

	return &Model{
		ID:                 id,
		Name:               name,
		Type:               typ,
		ContextTokens:      intOr(spec["availableContextTokens"], DefaultContextTokens),
		DefaultTemperature: defaultTemperature(spec),
		Capabilities:       parseCapabilities(spec["capabilities"]),
		Pricing:            parsePricing(spec["pricing"]),
	}
}

func defaultTemperature(spec map[string]any) float64 {
	constraints := asMap(spec["constraints"])
	temp := asMap(constraints["temperature"])
	// Only genuine numbers override the default here; the API has been
	// seen sending "default": "auto" for some image models.
	if f, ok := asNumber(temp["default"]); ok {
		return f
	}
	return DefaultTemperature
}

func parseCapabilities(v any) Capabilities {
	data := asMap(v)
	return Capabilities{
		Vision:          truthy(data["supportsVision"]),
		Reasoning:       truthy(data["supportsReasoning"]),
		FunctionCalling: truthy(data["supportsFunctionCalling"]),
		WebSearch:       truthy(data["supportsWebSearch"]),
		CodeOptimized:   truthy(data["optimizedForCode"]),
		ResponseSchema:  truthy(data["supportsResponseSchema"]),
	}
}

func parsePricing(v any) Pricing {
	data := asMap(v)
	return Pricing{
		InputUSD:  extractUSD(data["input"]),
		OutputUSD: extractUSD(data["output"]),
	}
}

// extractUSD reads the "usd" field of a pricing sub-object. Absent or
// non-numeric values yield nil (price unknown), never zero.
func extractUSD(v any) *float64 {
	sub := asMap(v)
	val, ok := sub["usd"]
	if !ok || val == nil {
		return nil
	}
	if f, ok := coerceFloat(val); ok {
		return &f
	}
	return nil
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asNumber accepts only genuine numeric types.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// coerceFloat additionally accepts numeric strings.
func coerceFloat(v any) (float64, bool) {
	if f, ok := asNumber(v); ok {
		return f, true
	}
	if s, ok := v.(string); ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func intOr(v any, fallback int) int {
	if f, ok := coerceFloat(v); ok {
		return int(f)
	}
	return fallback
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case string:
		return t != ""
	}
	return false
}
