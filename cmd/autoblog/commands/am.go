package commands

import (
	"encoding/json"
	"fmt"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/teranos/autoblog/am"
	"github.com/teranos/autoblog/sym"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: sym.AM + " Manage autoblog configuration",
	Long: sym.AM + ` am: manage autoblog configuration ("I am")

Configuration sources (in order of precedence):
1. Environment variables (AUTOBLOG_* prefix, plus OPENAI_API_KEY etc.)
2. Project config (./am.toml, searched upwards)
3. User config (~/.autoblog/am.toml)
4. System config (/etc/autoblog/am.toml)
5. Default values

Examples:
  autoblog am show                    # Show current configuration
  autoblog am show --format json      # Show configuration in JSON format
  autoblog am get pulse.workers       # Get specific config value
  autoblog am validate                # Validate current configuration`,
}

var amShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration (API keys redacted)",
	RunE:  runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a specific configuration value",
	Long:  "Get a specific configuration value using dot notation (e.g., database.path, pulse.workers)",
	Args:  cobra.ExactArgs(1),
	RunE:  runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate current configuration",
	RunE:  runAmValidate,
}

var configFormat string

func init() {
	amShowCmd.Flags().StringVar(&configFormat, "format", "toml", "Output format: toml, json, yaml")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
}

// redacted returns a copy of cfg safe to print
func redacted(cfg am.Config) am.Config {
	for _, pc := range []*am.ProviderConfig{
		&cfg.Providers.OpenAI, &cfg.Providers.Anthropic, &cfg.Providers.Gemini,
		&cfg.Providers.OpenRouter, &cfg.Providers.Local,
	} {
		if pc.APIKey != "" {
			pc.APIKey = "********"
		}
	}
	return cfg
}

func runAmShow(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	safe := redacted(*cfg)

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(safe, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
		fmt.Println(string(data))

	case "yaml":
		data, err := yaml.Marshal(safe)
		if err != nil {
			return fmt.Errorf("failed to marshal config to YAML: %w", err)
		}
		fmt.Printf("# autoblog configuration\n%s", string(data))

	case "toml":
		data, err := toml.Marshal(safe)
		if err != nil {
			return fmt.Errorf("failed to marshal config to TOML: %w", err)
		}
		fmt.Printf("# autoblog configuration\n%s", string(data))

	default:
		return fmt.Errorf("unsupported format: %s (supported: toml, json, yaml)", configFormat)
	}
	return nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	key := args[0]
	v := am.GetViper()
	if !v.IsSet(key) {
		return fmt.Errorf("configuration key %q not found", key)
	}
	fmt.Println(am.Get(key))
	return nil
}

func runAmValidate(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	fmt.Println("✓ Configuration is valid")
	return nil
}
