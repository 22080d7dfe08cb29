package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/veremin/rfp-copilot/internal/ai"
	"github.com/veremin/rfp-copilot/internal/ai/gemini"
	"github.com/veremin/rfp-copilot/internal/comparison"
	"github.com/veremin/rfp-copilot/internal/document"
	logging "github.com/veremin/rfp-copilot/internal/logger"
	"github.com/veremin/rfp-copilot/internal/pipeline"
	"github.com/veremin/rfp-copilot/internal/proposal"
	"github.com/veremin/rfp-copilot/internal/rfp"
	"github.com/veremin/rfp-copilot/internal/secrets"
	"github.com/veremin/rfp-copilot/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var savePrompt = promptui.Select{
	Label: "Save the comparison results?",
	Items: []string{PromptYes, PromptNo},
}

var compareCmd = &cobra.Command{
	Use:   "compare [proposal files...]",
	Short: "Extract the given proposal files and compare them against the RFP",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		compare(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringP("rfp", "r", "", "path to the RFP specification file (yaml)")
	compareCmd.Flags().BoolP("auto-approve", "y", false, "save results without asking for confirmation")
	compareCmd.Flags().StringP("store", "s", "", "path to the sqlite database. Default is unset (results are not saved).")

	viper.BindPFlag("rfp-file", compareCmd.Flags().Lookup("rfp"))
	viper.BindPFlag("store-path", compareCmd.Flags().Lookup("store"))
}

// compare is the main command for the cli.
func compare(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logging.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the rfp-copilot", zap.String("version", version))

	if config == nil {
		config = &Config{}
	}

	if config.RFPFile == "" {
		logger.Fatal("an RFP file is required",
			zap.String("hint", "pass --rfp or set the 'rfp-file' key in the configuration file"),
		)
	}

	spec, err := rfp.Load(config.RFPFile)
	if err != nil {
		logger.Fatal("loading the rfp specification", zap.Error(err))
	}

	logger.Info("loaded the rfp specification",
		zap.String("title", spec.Title),
		zap.String("budget", spec.Budget),
		zap.String("items", spec.ItemSummary()),
	)

	generator, err := newGenerator(ctx, config.AI)
	if err != nil {
		logger.Fatal("building the ai generator", zap.Error(err))
	}

	maxLogLength := 0
	if config.AI != nil && config.AI.Gemini != nil {
		maxLogLength = config.AI.Gemini.MaxLogLength
	}

	aiLogger := logging.WithCommonFields(logger, "gemini", generator.Model())

	loader := document.NewLoader(document.Config{Pdftotext: config.Pdftotext}, logger)
	extractor := proposal.NewExtractor(generator, loader, aiLogger, maxLogLength)
	engine := comparison.NewEngine(generator, aiLogger, maxLogLength)

	var st store.Store
	if config.StorePath != "" {
		sqlite, err := store.Open(config.StorePath)
		if err != nil {
			logger.Fatal("opening the store", zap.Error(err))
		}
		defer sqlite.Close()
		st = sqlite
	}

	p := pipeline.New(pipeline.Config{
		Concurrency: config.Concurrency,
		MaxFiles:    config.MaxFiles,
	}, extractor, engine, st, logger)

	uploads, err := readUploads(args)
	if err != nil {
		logger.Fatal("reading proposal files", zap.Error(err))
	}

	result, err := p.Run(ctx, spec, uploads)
	if err != nil {
		logger.Fatal("comparison failed", zap.Error(err))
	}

	report, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("rendering the report", zap.Error(err))
	}
	fmt.Println(string(report))

	logger.Info("recommended proposal",
		zap.String("vendor", result.Best.VendorName),
		zap.String("file", result.Best.FileName),
		zap.Int("score", result.Best.CompatibilityScore),
		zap.String("reason", result.Best.Reason),
	)

	if st == nil {
		logger.Info("skipping save", zap.String("reason", "no store configured"))
		return
	}

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := savePrompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	if err := p.Persist(ctx, result); err != nil {
		logger.Fatal("saving results", zap.Error(err))
	}

	logger.Info("saved the comparison",
		zap.String("rfp_id", result.RFPID),
		zap.Int("proposals", len(result.Proposals)),
	)
}

func newGenerator(ctx context.Context, cfg *AIConfig) (ai.Generator, error) {
	if cfg == nil {
		cfg = &AIConfig{}
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKeyFile := strings.TrimSpace(cfg.Gemini.APIKeyFile)
	if apiKeyFile == "" {
		apiKeyFile = strings.TrimSpace(viper.GetString("ai.gemini.api-key-file"))
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: apiKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	timeout := time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, timeout)
}

func readUploads(paths []string) ([]pipeline.Upload, error) {
	uploads := make([]pipeline.Upload, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", path, err)
		}
		uploads = append(uploads, pipeline.Upload{
			FileName: filepath.Base(path),
			MIMEType: mime.TypeByExtension(filepath.Ext(path)),
			Data:     data,
		})
	}
	return uploads, nil
}
