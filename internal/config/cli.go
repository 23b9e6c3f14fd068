package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseFlags parses command line flags and returns the config file path
func ParseFlags() (configFile string, generateConfig bool, err error) {
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.BoolVar(&generateConfig, "generate-config", false, "Print an example configuration file and exit")

	help := flag.Bool("help", false, "Show help")

	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	if generateConfig {
		return "", true, nil
	}

	return configFile, false, nil
}

// GenerateExampleConfig writes the default configuration as YAML
func GenerateExampleConfig(w *os.File) error {
	cfg := getDefaultConfig()
	cfg.Auth.JWT.Secret = "change-me"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if _, err := fmt.Fprintf(w, "# eventchat example configuration\n# Every key can be overridden by its env variable, optionally with the %s prefix.\n%s", "EVENTCHAT_", data); err != nil {
		return fmt.Errorf("failed to write example config: %w", err)
	}
	return nil
}
