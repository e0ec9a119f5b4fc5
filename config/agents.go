package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/agentflow/orchestrator/registry"
)

type agentsFile struct {
	Agents []registry.Descriptor `yaml:"agents"`
}

// LoadAgents reads a YAML file describing the agent registry's initial
// contents (and the set used by /agents/reload).
func LoadAgents(path string) ([]registry.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read agents file %s: %w", path, err)
	}
	var parsed agentsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("config: parse agents file %s: %w", path, err)
	}
	return parsed.Agents, nil
}
