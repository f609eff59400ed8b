package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/harvest"
)

var (
	// Global flags
	verbose    bool
	configPath string
	familyName string

	logger *zap.Logger
	cfg    *harvest.Config
)

var rootCmd = &cobra.Command{
	Use:   "otb",
	Short: "OpenTraceBits - differential bitstream feature extraction",
	Long: `OpenTraceBits (otb) turns recorded configuration-image differences into a
tile database describing which bits encode which attribute.

  - collect: run a recipe over sample files and write the database
  - merge:   reconcile the databases of several device variants
  - dump:    print a database as JSON or S-expressions
  - plan:    show and check the steps a recipe expands to
  - imgdiff: compare two raw images and print the difference as a sample

Examples:
  otb collect --recipe clb.yaml --out clb.json.zst samples/*.samples
  otb merge --out all.json xc2c32a.json xc2c64a.json
  otb dump --sexp clb.json.zst
  otb imgdiff --geometry 4x32x64 --key CLB:SLICE0:FFEN:1 base.bit ffen.bit`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		config.Encoding = "console"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath != "" {
			cfg, err = harvest.LoadConfig(configPath)
			if err != nil {
				return err
			}
		} else {
			cfg = harvest.DefaultConfig()
		}
		if cmd.Flags().Changed("family") {
			cfg.Family = familyName
		}
		return cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "pass configuration file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&familyName, "family", "f", "frame",
		fmt.Sprintf("coordinate family %v", bitcoord.FamilyNames))
}
