package casm

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ProjectConfig is an optional per-project manifest (casm.yaml) carrying
// build defaults that would otherwise have to be repeated as flags on
// every invocation. It's deliberately separate from the user-level
// ~/.casmrc.yaml viper reads: this one travels with the project.
type ProjectConfig struct {
	AddrSize      int    `yaml:"addr_size"`
	LinkRelax     bool   `yaml:"linkrelax"`
	Dwarf64       bool   `yaml:"dwarf64"`
	MinInsnLength int    `yaml:"min_insn_length"`
	Out           string `yaml:"out"`
}

// loadProjectConfig reads path if it exists, returning a zero ProjectConfig
// (not an error) when the file is simply absent.
func loadProjectConfig(path string) (ProjectConfig, error) {
	var cfg ProjectConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
