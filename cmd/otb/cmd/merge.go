package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/dbio"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/harvest"
)

var neutral bool

var mergeCmd = &cobra.Command{
	Use:   "merge <database>...",
	Short: "Merge the tile databases of several device variants",
	Long: `Fold every database into the first. Enumerations are re-expressed over the
union of their bits; positions a variant does not cover take the neutral
value. Any conflict aborts the merge.

Examples:
  otb merge --out family.json xc2c32a.json xc2c64a.json
  otb merge --neutral --out family.sexp a.json.zst b.json.zst`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&outPath, "out", "o", "", "output database file")
	mergeCmd.Flags().BoolVar(&neutral, "neutral", false, "fill value for bits a variant lacks (default from config)")
	mergeCmd.MarkFlagRequired("out")
}

func runMerge(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("neutral") {
		cfg.Neutral = neutral
	}
	switch cfg.Family {
	case bitcoord.Frames.Name:
		return mergeWith(bitcoord.Frames, args)
	case bitcoord.Fuses.Name:
		return mergeWith(bitcoord.Fuses, args)
	}
	return fmt.Errorf("unknown family %q", cfg.Family)
}

func mergeWith[C bitcoord.Coord[C]](family bitcoord.Family[C], paths []string) error {
	db, err := harvest.MergeFiles(paths, family, cfg.Neutral, logger)
	if err != nil {
		return err
	}
	path := withCompression(outPath, cfg.Compression)
	if err := dbio.Save(path, db, family); err != nil {
		return err
	}
	fmt.Printf("Merged %d databases: %d tiles, %d items -> %s\n", len(paths), len(db.Tiles()), db.Len(), path)
	return nil
}
