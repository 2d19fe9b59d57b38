package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/multiview/internal/model"
	"github.com/sells-group/multiview/internal/pipeline"
)

var (
	askQuery  string
	askFiles  []string
	askAPIKey string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Run one query through the pipeline and print the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "ask")
		if err != nil {
			return err
		}

		credential := askAPIKey
		if credential == "" {
			credential = cfg.OpenRouter.Key
		}

		return runAsk(ctx, cmd.OutOrStdout(), env.Pipeline, env.Extractor, credential, askQuery, askFiles)
	},
}

type queryRunner interface {
	Run(ctx context.Context, credential, query string, docs []model.Document) (*model.PipelineResponse, error)
}

type fileExtractor interface {
	ProcessBytes(ctx context.Context, filename string, data []byte) (string, error)
}

// runAsk extracts each file into a document, runs the pipeline and writes
// the response as indented JSON.
func runAsk(ctx context.Context, w io.Writer, p queryRunner, ext fileExtractor, credential, query string, files []string) error {
	docs := make([]model.Document, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "read %s", path)
		}
		name := filepath.Base(path)
		text, err := ext.ProcessBytes(ctx, name, data)
		if err != nil {
			return eris.Wrapf(err, "extract %s", path)
		}
		docs = append(docs, model.Document{Name: name, Content: text, Size: len(data)})
	}

	resp, runErr := p.Run(ctx, credential, query, docs)
	var upstream *pipeline.UpstreamError
	if runErr != nil && !errors.As(runErr, &upstream) {
		return eris.Wrap(runErr, "pipeline run")
	}

	if resp != nil {
		zap.L().Info("query complete",
			zap.String("run_id", resp.RunID),
			zap.Int("documents", len(docs)),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return eris.Wrap(err, "encode response")
		}
	}
	if runErr != nil {
		return eris.Wrap(runErr, "pipeline run")
	}
	return nil
}

func init() {
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question to answer (required)")
	askCmd.Flags().StringSliceVarP(&askFiles, "file", "f", nil, "supporting document path (repeatable)")
	askCmd.Flags().StringVar(&askAPIKey, "api-key", "", "OpenRouter API key (default from config)")
	_ = askCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(askCmd)
}
