package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/hypothesis-lab/constants"
	"github.com/joseph-ayodele/hypothesis-lab/internal/common"
	"github.com/joseph-ayodele/hypothesis-lab/internal/document"
	"github.com/joseph-ayodele/hypothesis-lab/internal/llm"
)

var (
	analyzeOutput string
	analyzeFormat string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze one local document and print the result",
	Long: `Analyze runs a single document through the same pipeline the service uses
and prints the summary and hypotheses.

Example:
  hypothesisd analyze paper.pdf
  hypothesisd analyze notes.html --provider openai --output yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "json", "output format (json, yaml)")
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "", "document format override (PDF, HTML, TEXT)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]
	hint := strings.ToUpper(strings.TrimSpace(analyzeFormat))
	if hint != "" && !containsFold(constants.FileTypes, hint) {
		return fmt.Errorf("unknown --format %q (want one of %s)", analyzeFormat, strings.Join(constants.FileTypes, ", "))
	}
	if hint == "" {
		if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return fmt.Errorf("unsupported file type %q (use --format to override)", filepath.Ext(path))
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	doc := document.NewDocument(filepath.Base(path), data, hint)
	res, err := a.processor.Analyze(ctx, doc, a.provider)
	if err != nil {
		perr := common.AsPipelineError(err)
		return fmt.Errorf("%s: %s", perr.Kind, perr.PublicMessage())
	}
	return writeResult(cmd.OutOrStdout(), res, analyzeOutput)
}

func writeResult(w io.Writer, res *llm.AnalysisResult, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(res)
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
