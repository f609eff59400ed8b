package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/dbio"
)

var dumpSexp bool

var dumpCmd = &cobra.Command{
	Use:   "dump <database>",
	Short: "Print a tile database",
	Long: `Print a tile database to standard output as JSON, or as S-expressions with
--sexp.

Examples:
  otb dump clb.json.zst
  otb dump --sexp --family fuse xc2c32a.json`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().BoolVar(&dumpSexp, "sexp", false, "print S-expressions instead of JSON")
}

func runDump(cmd *cobra.Command, args []string) error {
	switch cfg.Family {
	case bitcoord.Frames.Name:
		return dumpWith(bitcoord.Frames, args[0])
	case bitcoord.Fuses.Name:
		return dumpWith(bitcoord.Fuses, args[0])
	}
	return fmt.Errorf("unknown family %q", cfg.Family)
}

func dumpWith[C bitcoord.Coord[C]](family bitcoord.Family[C], path string) error {
	db, err := dbio.Load(path, family)
	if err != nil {
		return err
	}
	if dumpSexp {
		return dbio.WriteSexp(os.Stdout, db, family)
	}
	return dbio.Encode(os.Stdout, db, family)
}
