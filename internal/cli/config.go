package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage hypothesis-lab configuration",
	Long: `Manage hypothesis-lab configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (HYPOTHESIS_*, then GEMINI_API_KEY, OPENAI_API_KEY,
   ANTHROPIC_API_KEY, OLLAMA_BASE_URL for provider credentials)
3. Config file (~/.hypothesis-lab/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", f)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults and environment)\n\n")
		}
		if err := writeConfig(cmd.OutOrStdout(), redacted(*cfg)); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nwarning: %v\n", err)
		}
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create ~/.hypothesis-lab/config.yaml (or the --config path) with every option at its default.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		path := cfgFile
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("error finding home directory: %w", err)
			}
			path = filepath.Join(home, ".hypothesis-lab", "config.yaml")
		}

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'hypothesisd config show' to view it, or delete it first to recreate", path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		if _, err := fmt.Fprint(f, "# hypothesis-lab configuration\n# API keys are better kept in the environment (GEMINI_API_KEY, ...).\n\n"); err != nil {
			return err
		}
		if err := writeConfig(f, *common.DefaultConfig()); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration: %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func writeConfig(w io.Writer, cfg common.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// redacted hides credentials before a config is printed.
func redacted(cfg common.Config) common.Config {
	if cfg.LLM.APIKey != "" {
		cfg.LLM.APIKey = "****"
	}
	if cfg.Ledger.DSN != "" && cfg.Ledger.Driver == "postgres" {
		cfg.Ledger.DSN = "****"
	}
	return cfg
}
