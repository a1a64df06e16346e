package config

import (
	"fmt"

	"github.com/spf13/viper"

	"ammPool/internal/upgrade"
)

// LoadCandidate reads an upgrade candidate manifest (yaml, json or toml).
func LoadCandidate(path string) (upgrade.Candidate, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return upgrade.Candidate{}, fmt.Errorf("read candidate: %w", err)
	}
	var candidate upgrade.Candidate
	if err := v.Unmarshal(&candidate); err != nil {
		return upgrade.Candidate{}, fmt.Errorf("decode candidate: %w", err)
	}
	if candidate.Name == "" {
		return upgrade.Candidate{}, fmt.Errorf("candidate %s has no name", path)
	}
	return candidate, nil
}
