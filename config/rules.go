package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentflow/orchestrator/reasoning"
)

type rulesFile struct {
	Rules    []reasoning.Rule `yaml:"rules"`
	Settings struct {
		HighConfidenceThreshold float64 `yaml:"high_confidence_threshold"`
		ValidateMultiWithAI     bool    `yaml:"validate_multi_with_ai"`
	} `yaml:"settings"`
}

// RuleSettings carries the reasoning-level knobs from rules.yaml that
// aren't themselves rules (e.g. the hybrid strategy's validation toggle).
type RuleSettings struct {
	HighConfidenceThreshold float64
	ValidateMultiWithAI     bool
}

// LoadRules reads the rule set and its accompanying reasoning settings.
func LoadRules(path string) ([]reasoning.Rule, RuleSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, RuleSettings{}, fmt.Errorf("config: read rules file %s: %w", path, err)
	}
	var parsed rulesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, RuleSettings{}, fmt.Errorf("config: parse rules file %s: %w", path, err)
	}
	settings := RuleSettings{
		HighConfidenceThreshold: parsed.Settings.HighConfidenceThreshold,
		ValidateMultiWithAI:     parsed.Settings.ValidateMultiWithAI,
	}
	if settings.HighConfidenceThreshold == 0 {
		settings.HighConfidenceThreshold = reasoning.HighConfidenceThreshold
	}
	return parsed.Rules, settings, nil
}
