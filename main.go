package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vizkit/grapher/internal/buildinfo"
)

var (
	version    = "dev"
	commitHash = "n/a"
	buildDate  = "<unknown>"
)

func makeLogger(verbosity int) logr.Logger {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapcore.Level(-verbosity)) //nolint:gosec
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	logger, err := config.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	return zapr.NewLogger(logger)
}

func main() {
	root := &cobra.Command{
		Use:     "grapher",
		Short:   "Derive render-ready chart state from a chart config and variable data",
		Version: buildinfo.New(version, commitHash, buildDate).String(),
	}
	root.PersistentFlags().IntP("verbosity", "v", 0, "log verbosity (higher is chattier)")
	root.PersistentFlags().Bool("authoring", false, "run in authoring-tool mode")
	addCommands(root)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
