package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/cfstlab/papermine"
	"github.com/cfstlab/papermine/pdfdoc"
)

var (
	configPath string
	workDir    string
	verbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "papermine",
		Short: "Extract CFST specimen test data from academic PDFs",
		Long: `papermine runs a two-phase extraction pipeline over academic papers:
pages are scored and rendered into a per-document image cache, a vision
model extracts specimen records from the cached images, and every record is
validated against closed-form capacity formulas before landing in a styled
workbook. The cache doubles as a checkpoint, so interrupted documents
resume at the extraction stage.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			})))
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (JSON)")
	root.PersistentFlags().StringVarP(&workDir, "dir", "d", ".", "working directory for the default layout")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(runCmd(), extractCmd(), resumeCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Process every PDF in the input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			summary, err := eng.ProcessDirectory(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), summary.Report)
			if summary.WorkbookPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Workbook: %s\n", summary.WorkbookPath)
			}
			if summary.Failed > 0 || summary.Retained > 0 {
				return fmt.Errorf("%d documents failed, %d retained for retry",
					summary.Failed, summary.Retained)
			}
			return nil
		},
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract <paper.pdf>",
		Short: "Process a single PDF end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.ProcessDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd, res)
			if res.Err != nil {
				return res.Err
			}
			return nil
		},
	}
}

func resumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <doc-id>",
		Short: "Re-run extraction from a document's cached images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := buildEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			res, err := eng.ResumeFromCache(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printResult(cmd, res)
			if res.Err != nil {
				return res.Err
			}
			return nil
		},
	}
}

func printResult(cmd *cobra.Command, res *papermine.DocumentResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s", res.DocID, res.Outcome)
	if res.Records > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), " (%d records: %d OK, %d review, %d error)",
			res.Records, res.Summary.OK, res.Summary.Review, res.Summary.Errors)
	}
	if res.Warning != "" {
		fmt.Fprintf(cmd.OutOrStdout(), " [warning: %s]", res.Warning)
	}
	fmt.Fprintln(cmd.OutOrStdout())
}

func buildEngine() (papermine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// Rendering shells out to poppler; fail before touching any document.
	if err := pdfdoc.CheckPoppler(); err != nil {
		return nil, err
	}
	return papermine.New(cfg)
}

func loadConfig() (papermine.Config, error) {
	cfg := papermine.DefaultConfig(workDir)
	if configPath != "" {
		f, err := os.Open(configPath)
		if err != nil {
			return cfg, fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	// Environment overrides.
	if v := os.Getenv("PAPERMINE_VISION_PROVIDER"); v != "" {
		cfg.Vision.Provider = v
	}
	if v := os.Getenv("PAPERMINE_VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}
	if v := os.Getenv("PAPERMINE_VISION_BASE_URL"); v != "" {
		cfg.Vision.BaseURL = v
	}
	if v := os.Getenv("PAPERMINE_VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}

	// Fallback: well-known provider env vars.
	if cfg.Vision.APIKey == "" {
		switch cfg.Vision.Provider {
		case "openai":
			cfg.Vision.APIKey = os.Getenv("OPENAI_API_KEY")
		case "openrouter":
			cfg.Vision.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "gemini":
			cfg.Vision.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
