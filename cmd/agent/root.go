package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/renderdeck/renderdeck-agent/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "renderdeck-agent",
	Short: "Local timeline export agent",
	Long: `renderdeck-agent renders multi-track edit timelines into video files
by driving ffmpeg. It runs either as a local HTTP service with a durable
job queue (serve) or as a one-shot export of a timeline file (export).`,
	SilenceUsage:  true,
	SilenceErrors: false,
	Version:       config.Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"renderdeck-agent %s (built %s, commit %s)\n",
		config.Version, config.BuildTime, config.GitCommit,
	))
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
}
