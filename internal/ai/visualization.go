package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

type Visualization struct {
	Headline       string          `json:"headline"`
	ImpactScore    int             `json:"impactScore"`
	AffectedGroups []AffectedGroup `json:"affectedGroups"`
	Metrics        []Metric        `json:"metrics"`
	Recommendation string          `json:"recommendation"`
}

type AffectedGroup struct {
	Group  string `json:"group"`
	Impact string `json:"impact"`
}

type Metric struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// UnmarshalJSON accepts a fractional impact score, rounding and clamping it
// to 0..100.
func (v *Visualization) UnmarshalJSON(data []byte) error {
	type plain Visualization
	aux := struct {
		*plain
		ImpactScore float64 `json:"impactScore"`
	}{plain: (*plain)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v.ImpactScore = int(math.Round(math.Max(0, math.Min(100, aux.ImpactScore))))
	return nil
}

var ErrNoVisualization = errors.New("response did not contain a visualization object")

// jsonBlock matches from the first '{' to the last '}' of a response.
var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// ParseVisualization decodes a model response, tolerating prose or code
// fences around the JSON object.
func ParseVisualization(text string) (*Visualization, error) {
	var v Visualization
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &v); err != nil {
		block := jsonBlock.FindString(text)
		if block == "" {
			return nil, ErrNoVisualization
		}
		if err := json.Unmarshal([]byte(block), &v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoVisualization, err)
		}
	}
	if v.Headline == "" {
		return nil, fmt.Errorf("%w: missing headline", ErrNoVisualization)
	}
	v.normalize()
	return &v, nil
}

func (v *Visualization) normalize() {
	if v.ImpactScore < 0 {
		v.ImpactScore = 0
	}
	if v.ImpactScore > 100 {
		v.ImpactScore = 100
	}
	for i := range v.AffectedGroups {
		switch impact := strings.ToLower(v.AffectedGroups[i].Impact); impact {
		case "low", "medium", "high":
			v.AffectedGroups[i].Impact = impact
		default:
			v.AffectedGroups[i].Impact = "medium"
		}
	}
	if v.AffectedGroups == nil {
		v.AffectedGroups = []AffectedGroup{}
	}
	if v.Metrics == nil {
		v.Metrics = []Metric{}
	}
}
