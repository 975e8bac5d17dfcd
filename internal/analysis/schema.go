// Package analysis defines the structured financial analysis produced by the
// language model and validates untrusted model output against it.
package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidJSON is returned by Parse when the model output is not
// syntactically valid JSON. It is distinct from a *ValidationError, which
// reports well-formed JSON of the wrong shape.
var ErrInvalidJSON = errors.New("invalid analysis JSON")

// MarketImpact breaks the market consequences down by asset class.
type MarketImpact struct {
	Equities    []string `json:"equities"`
	Rates       []string `json:"rates"`
	FX          []string `json:"fx"`
	Commodities []string `json:"commodities"`
	Credit      []string `json:"credit"`
}

// Payload is a validated analysis, stored verbatim as Analysis.contentJson.
type Payload struct {
	Summary             string       `json:"summary"`
	Background          []string     `json:"background"`
	TimelinePositioning []string     `json:"timeline_positioning"`
	GeopoliticalImpact  []string     `json:"geopolitical_impact"`
	MarketImpact        MarketImpact `json:"market_impact"`
	Uncertainties       []string     `json:"uncertainties"`
	WhatToWatchNext     []string     `json:"what_to_watch_next"`
}

// Violation is a single field that does not match the schema.
type Violation struct {
	Path    string `json:"path"`
	Problem string `json:"problem"`
}

// ValidationError lists every violated field path of a rejected payload.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Path + ": " + v.Problem
	}
	return "analysis does not match schema: " + strings.Join(parts, "; ")
}

// Paths returns the violated field paths in the order they were found.
func (e *ValidationError) Paths() []string {
	paths := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		paths[i] = v.Path
	}
	return paths
}

// stringListFields are the top-level keys holding arrays of strings, in
// schema order.
var stringListFields = []string{
	"background",
	"timeline_positioning",
	"geopolitical_impact",
}

var trailingListFields = []string{
	"uncertainties",
	"what_to_watch_next",
}

var marketImpactFields = []string{"equities", "rates", "fx", "commodities", "credit"}

// Parse decodes raw model output strictly as JSON. Syntax errors wrap
// ErrInvalidJSON. Markdown code fences around the document are tolerated.
func Parse(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripCodeFence(raw))))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON value", ErrInvalidJSON)
	}
	return v, nil
}

// Validate checks an untyped JSON value against the analysis schema. All
// fields are mandatory; arrays may be empty. Unknown keys are ignored and
// dropped from the returned payload. On mismatch it returns a
// *ValidationError naming every violated path.
func Validate(v any) (*Payload, error) {
	var violations []Violation
	fail := func(path, problem string) {
		violations = append(violations, Violation{Path: path, Problem: problem})
	}

	obj, ok := v.(map[string]any)
	if !ok {
		fail("$", "expected object, got "+typeName(v))
		return nil, &ValidationError{Violations: violations}
	}

	var p Payload

	switch s, present := obj["summary"]; {
	case !present:
		fail("summary", "required")
	default:
		str, ok := s.(string)
		if !ok {
			fail("summary", "expected string, got "+typeName(s))
		}
		p.Summary = str
	}

	lists := make(map[string][]string, len(stringListFields)+len(trailingListFields))
	for _, key := range stringListFields {
		lists[key] = stringList(obj, key, key, fail)
	}

	if mi, present := obj["market_impact"]; !present {
		fail("market_impact", "required")
	} else if miObj, ok := mi.(map[string]any); !ok {
		fail("market_impact", "expected object, got "+typeName(mi))
	} else {
		sub := make(map[string][]string, len(marketImpactFields))
		for _, key := range marketImpactFields {
			sub[key] = stringList(miObj, key, "market_impact."+key, fail)
		}
		p.MarketImpact = MarketImpact{
			Equities:    sub["equities"],
			Rates:       sub["rates"],
			FX:          sub["fx"],
			Commodities: sub["commodities"],
			Credit:      sub["credit"],
		}
	}

	for _, key := range trailingListFields {
		lists[key] = stringList(obj, key, key, fail)
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	p.Background = lists["background"]
	p.TimelinePositioning = lists["timeline_positioning"]
	p.GeopoliticalImpact = lists["geopolitical_impact"]
	p.Uncertainties = lists["uncertainties"]
	p.WhatToWatchNext = lists["what_to_watch_next"]
	return &p, nil
}

// ParseAndValidate runs Parse followed by Validate.
func ParseAndValidate(raw string) (*Payload, error) {
	v, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return Validate(v)
}

// stringList reads obj[key] as an array of strings, reporting problems under
// path. The returned slice is never nil for a valid field.
func stringList(obj map[string]any, key, path string, fail func(path, problem string)) []string {
	raw, present := obj[key]
	if !present {
		fail(path, "required")
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		fail(path, "expected array of strings, got "+typeName(raw))
		return nil
	}

	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			fail(fmt.Sprintf("%s[%d]", path, i), "expected string, got "+typeName(item))
			continue
		}
		out = append(out, s)
	}
	return out
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// stripCodeFence removes a surrounding ```json ... ``` or ``` ... ``` block,
// which some models emit even in JSON mode.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)

	if after, found := strings.CutPrefix(s, "```json"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	if after, found := strings.CutPrefix(s, "```"); found {
		if idx := strings.LastIndex(after, "```"); idx >= 0 {
			after = after[:idx]
		}
		return strings.TrimSpace(after)
	}

	return s
}
