package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderdeck/renderdeck-agent/internal/api"
	"github.com/renderdeck/renderdeck-agent/internal/config"
	"github.com/renderdeck/renderdeck-agent/internal/ffmpeg"
	"github.com/renderdeck/renderdeck-agent/internal/logging"
	"github.com/renderdeck/renderdeck-agent/internal/render"
	"github.com/renderdeck/renderdeck-agent/internal/timeline"
)

var (
	exportOutput     string
	exportWidth      int
	exportHeight     int
	exportQuality    string
	exportBackground string
)

var exportCmd = &cobra.Command{
	Use:   "export <timeline.json>",
	Short: "Export a timeline file without starting the service",
	Long: `export renders a timeline JSON file in one shot. The file uses the
same shape as the POST /export request body; media assets must be
inline since no library database is consulted. Flags override the
corresponding fields of the file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExport(cmd.Context(), args[0])
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file path")
	exportCmd.Flags().IntVar(&exportWidth, "width", 0, "output width in pixels")
	exportCmd.Flags().IntVar(&exportHeight, "height", 0, "output height in pixels")
	exportCmd.Flags().StringVarP(&exportQuality, "quality", "q", "", "quality tier: high, medium, low")
	exportCmd.Flags().StringVar(&exportBackground, "background", "", "canvas background color (#RRGGBB)")
}

func runExport(ctx context.Context, timelinePath string) error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel())

	data, err := os.ReadFile(timelinePath)
	if err != nil {
		return fmt.Errorf("reading timeline file: %w", err)
	}
	var req api.ExportRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parsing timeline file: %w", err)
	}

	if exportOutput != "" {
		req.OutputPath = exportOutput
	}
	if exportWidth > 0 {
		req.Resolution.Width = exportWidth
	}
	if exportHeight > 0 {
		req.Resolution.Height = exportHeight
	}
	if exportQuality != "" {
		req.Quality = exportQuality
	}
	if exportBackground != "" {
		req.Background = exportBackground
	}
	if req.Background == "" {
		req.Background = "#000000"
	}

	assets := make(map[string]timeline.Asset, len(req.MediaAssets))
	for _, a := range req.MediaAssets {
		assets[a.ID] = a
	}

	runner, err := ffmpeg.NewRunner(ffmpeg.Config{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		Logger:      logging.WithComponent(logger, "ffmpeg"),
	})
	if err != nil {
		return err
	}

	scratchRoot, err := os.MkdirTemp("", "renderdeck-export-")
	if err != nil {
		return fmt.Errorf("creating scratch root: %w", err)
	}
	defer os.RemoveAll(scratchRoot)

	engine := render.NewEngine(render.EngineConfig{
		Runner:      runner,
		Logger:      logging.WithComponent(logger, "render"),
		ScratchRoot: scratchRoot,
		FrameRate:   cfg.FrameRate(),
		Workers:     cfg.Workers(),
	})

	lastPercent := -1
	result, err := engine.Export(ctx, render.Request{
		Timeline:   timeline.Timeline{Tracks: req.Tracks, Assets: assets},
		OutputPath: req.OutputPath,
		Width:      req.Resolution.Width,
		Height:     req.Resolution.Height,
		Quality:    render.Quality(req.Quality),
		Background: req.Background,
		OnProgress: func(phase render.Phase, percent int) {
			if percent != lastPercent {
				lastPercent = percent
				fmt.Fprintf(os.Stderr, "\r%-20s %3d%%", phase, percent)
			}
		},
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}

	fmt.Printf("exported %s (%s strategy, %.1fs timeline, %s wall)\n",
		result.OutputPath, result.Strategy, result.Duration, result.Elapsed.Round(10*time.Millisecond))
	return nil
}
