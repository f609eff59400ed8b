package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/dbio"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/harvest"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/recipe"
)

var (
	recipePath string
	outPath    string
	strict     bool
	onlyTiles  []string
	tileRegex  string
)

var collectCmd = &cobra.Command{
	Use:   "collect <sample-file>...",
	Short: "Run a recipe over sample files and write the tile database",
	Long: `Load every sample file, run the steps of the recipe in order and write the
resulting tile database. Samples no step consumed are reported as warnings,
or fail the pass with --strict.

The output format follows the file name: .json or .sexp, optionally
followed by .zst or .lz4.

Examples:
  otb collect --recipe clb.yaml --out clb.json samples/*.samples
  otb collect -v --strict --only-tiles CLB,IOB --recipe all.yaml --out db.sexp.zst samples/*`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCollect,
}

func init() {
	rootCmd.AddCommand(collectCmd)

	collectCmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "recipe file (YAML)")
	collectCmd.Flags().StringVarP(&outPath, "out", "o", "", "output database file")
	collectCmd.Flags().BoolVar(&strict, "strict", false, "fail when samples are left over")
	collectCmd.Flags().StringSliceVar(&onlyTiles, "only-tiles", nil, "only collect these tile kinds")
	collectCmd.Flags().StringVar(&tileRegex, "tile-pattern", "", "only collect tile kinds matching this regex")
	collectCmd.MarkFlagRequired("recipe")
	collectCmd.MarkFlagRequired("out")
}

func runCollect(cmd *cobra.Command, args []string) error {
	r, err := recipe.Load(recipePath)
	if err != nil {
		return err
	}
	if strict {
		cfg.StrictLeftovers = true
	}
	if len(onlyTiles) > 0 {
		cfg.OnlyTiles = onlyTiles
	}
	if tileRegex != "" {
		cfg.OnlyTilePattern = tileRegex
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	switch cfg.Family {
	case bitcoord.Frames.Name:
		return collectWith(ctx, bitcoord.Frames, r, args)
	case bitcoord.Fuses.Name:
		return collectWith(ctx, bitcoord.Fuses, r, args)
	}
	return fmt.Errorf("unknown family %q", cfg.Family)
}

func collectWith[C bitcoord.Coord[C]](ctx context.Context, family bitcoord.Family[C], r *recipe.Recipe, paths []string) error {
	progress := make(chan harvest.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			if verbose && p.Phase == "loading" {
				fmt.Printf("  [%d/%d] %s (%d samples)\n", p.Index, p.Total, p.File, p.Samples)
			}
		}
	}()

	res, err := harvest.Run(ctx, cfg, family, r, paths, logger, progress)
	close(progress)
	<-done
	if err != nil {
		return err
	}

	path := withCompression(outPath, cfg.Compression)
	if err := dbio.Save(path, res.Db, family); err != nil {
		return err
	}

	fmt.Printf("Pass %s\n", res.PassID)
	fmt.Printf("  Steps:    %d\n", res.Report.Steps)
	fmt.Printf("  Items:    %d\n", res.Report.Items)
	fmt.Printf("  Samples:  %d consumed of %d\n", res.Report.Consumed, res.Report.Samples)
	fmt.Printf("  Leftover: %d\n", len(res.Leftover))
	fmt.Printf("  Written:  %s\n", path)
	return nil
}

// withCompression appends the suffix of the configured compression unless
// the path already names one.
func withCompression(path, comp string) string {
	if _, c := dbio.Detect(path); c != dbio.CompressNone {
		return path
	}
	switch dbio.Compression(comp) {
	case dbio.CompressZstd:
		return path + ".zst"
	case dbio.CompressLZ4:
		return path + ".lz4"
	}
	return path
}
