package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/WessleyAI/eventbrief/engine/brief"
	"github.com/WessleyAI/eventbrief/engine/domain"
	"github.com/WessleyAI/eventbrief/engine/render"
	"github.com/WessleyAI/eventbrief/pkg/config"
	"github.com/spf13/cobra"
)

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "autofill",
		Short:        "Fill event brief schemas from documents",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	config.RegisterFlags(root.PersistentFlags())
	root.AddCommand(newFillCmd(), newPDFCmd())
	return root
}

// setup resolves configuration and a logger writing to the command's stderr.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}

func newFillCmd() *cobra.Command {
	var schemaPath, eventName, outPath, pdfPath string
	cmd := &cobra.Command{
		Use:   "fill [files...]",
		Short: "Fill a schema from documents and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			schema, err := readSchema(schemaPath)
			if err != nil {
				return err
			}

			svc, cleanup, err := brief.Build(cmd.Context(), cfg, nil, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.AutoFill(cmd.Context(), args, schema, eventName)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			out = append(out, '\n')
			if outPath == "" {
				if _, err := cmd.OutOrStdout().Write(out); err != nil {
					return err
				}
			} else if err := os.WriteFile(outPath, out, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}

			if pdfPath != "" {
				if err := writePDF(cmd, svc.RenderPDF, res.Data, pdfPath); err != nil {
					return err
				}
			}
			logger.Info("autofill: done",
				"filled", res.Stats.FilledFields,
				"total", res.Stats.TotalFields,
				"completion_rate", res.Stats.CompletionRate,
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema JSON file")
	cmd.Flags().StringVar(&eventName, "event", "", "event name")
	cmd.Flags().StringVar(&outPath, "out", "", "write the filled schema here instead of stdout")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "also render the filled schema as a PDF brief")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newPDFCmd() *cobra.Command {
	var schemaPath, outPath string
	cmd := &cobra.Command{
		Use:   "pdf",
		Short: "Render a filled schema as a PDF brief",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			schema, err := readSchema(schemaPath)
			if err != nil {
				return err
			}
			r := render.New(render.Options{}, logger)
			return writePDF(cmd, r.Render, schema, outPath)
		},
	}
	cmd.Flags().StringVar(&schemaPath, "schema", "", "filled schema JSON file, or the output of fill")
	cmd.Flags().StringVar(&outPath, "out", "", "PDF output path")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

type renderFunc func(ctx context.Context, schema *domain.EventSchema, w io.Writer) error

func writePDF(cmd *cobra.Command, draw renderFunc, schema *domain.EventSchema, path string) error {
	var buf bytes.Buffer
	if err := draw(cmd.Context(), schema, &buf); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// readSchema loads a schema file. The {"data": ..., "stats": ...} output of
// fill is unwrapped.
func readSchema(path string) (*domain.EventSchema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Data) > 0 && !bytes.Equal(wrapped.Data, []byte("null")) {
		raw = wrapped.Data
	}
	schema, err := domain.ValidateSchemaJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return schema, nil
}
