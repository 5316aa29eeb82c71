package main

import (
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server settings. Flags override the YAML file, which
// overrides the defaults.
type Config struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`
}

func defaultConfig() Config {
	return Config{
		Addr:    ":8080",
		DataDir: "DATA",
	}
}

// loadConfig reads the optional YAML config file over the defaults. A
// missing file is not an error; a malformed one is logged and ignored.
func loadConfig(path string) Config {
	cfg := defaultConfig()
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("config: read %s: %v", path, err)
		}
		return cfg
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Printf("config: parse %s: %v", path, err)
		return defaultConfig()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "DATA"
	}
	return cfg
}
