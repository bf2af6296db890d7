package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
)

// Version is set at build time with -ldflags "-X ...cli.Version=...".
var Version = "dev"

const envPrefix = "HYPOTHESIS"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "hypothesisd",
	Short: "hypothesis-lab - research hypotheses from uploaded papers",
	Long: `hypothesisd reads a research document (PDF, HTML or plain text), keeps a
bounded excerpt, rejects documents that are not research material (resumes and
CVs), and asks a generative model for a short summary plus scored research
hypotheses.

Run "hypothesisd serve" for the HTTP/gRPC service or "hypothesisd analyze <file>"
for a single local run.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "hypothesisd %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.hypothesis-lab/config.yaml)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	pf.String("provider", "", "reasoning provider (gemini, openai, anthropic, ollama)")
	pf.String("model", "", "model name (default: the provider's lowest-cost tier)")
	pf.String("log-format", "", "log format (json, text)")

	_ = viper.BindPFlag("llm.provider", pf.Lookup("provider"))
	_ = viper.BindPFlag("llm.model", pf.Lookup("model"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".hypothesis-lab"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// HYPOTHESIS_LLM_PROVIDER -> llm.provider
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig decodes and validates the merged configuration.
func loadConfig() (*common.Config, error) {
	cfg, err := common.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section.
func newLogger(c common.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(c.Format, "text") {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(h)
}
