package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/swarm/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify swarm configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config.

Configuration is stored at ~/.config/swarm/config.yaml
Project-specific overrides can be placed in .swarm.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			return displayAllConfig()
		case 1:
			return displayConfigKey(args[0])
		default:
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Set %s in %s\n", args[0], config.GetUserConfigPath())
			return nil
		}
	},
}

// displayAllConfig prints every known key with its effective value.
func displayAllConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for _, key := range config.Keys() {
		if key == "anthropic.api_key" {
			continue
		}
		v, err := config.Value(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", key, formatConfigValue(key, v))
	}

	key, _ := config.GetAPIKey(cfg)
	fmt.Printf("anthropic.api_key: %s (source: %s)\n", maskedKey(key), config.GetAPIKeySource(cfg))
	return nil
}

func displayConfigKey(key string) error {
	v, err := config.Value(key)
	if err != nil {
		return err
	}
	fmt.Println(formatConfigValue(key, v))
	return nil
}

// formatConfigValue renders a value for display, never printing a raw API key.
func formatConfigValue(key string, v interface{}) string {
	if key == "anthropic.api_key" {
		s, _ := v.(string)
		return maskedKey(s)
	}
	if v == nil {
		return "(not set)"
	}
	return fmt.Sprint(v)
}

func maskedKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return config.MaskAPIKey(key)
}
