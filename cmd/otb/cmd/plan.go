package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/harvest"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/recipe"
)

var planCmd = &cobra.Command{
	Use:   "plan [sample-file]...",
	Short: "Show and check the steps a recipe expands to",
	Long: `Expand a recipe into its steps and check their declared dependencies: no
step may need an item no earlier step writes, write an item another step
writes, or read a sample an earlier step consumed. Steps that list no
values take them from the sample files, when given.

Examples:
  otb plan --recipe clb.yaml
  otb plan --recipe clb.yaml samples/*.samples`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&recipePath, "recipe", "r", "", "recipe file (YAML)")
	planCmd.MarkFlagRequired("recipe")
}

func runPlan(cmd *cobra.Command, args []string) error {
	r, err := recipe.Load(recipePath)
	if err != nil {
		return err
	}
	switch cfg.Family {
	case bitcoord.Frames.Name:
		return planWith(cmd, bitcoord.Frames, r, args)
	case bitcoord.Fuses.Name:
		return planWith(cmd, bitcoord.Fuses, r, args)
	}
	return fmt.Errorf("unknown family %q", cfg.Family)
}

func planWith[C bitcoord.Coord[C]](cmd *cobra.Command, family bitcoord.Family[C], r *recipe.Recipe, paths []string) error {
	var src recipe.ValueSource
	if len(paths) > 0 {
		store, err := harvest.LoadSamples(cmd.Context(), paths, family, cfg.Workers, nil)
		if err != nil {
			return err
		}
		src = store
	}
	plan, err := recipe.Build(harvest.FilterRecipe(r, cfg), family, src)
	if err != nil {
		return err
	}

	for i, s := range plan.Steps() {
		fmt.Printf("%3d. %s\n", i+1, s.Name)
		for _, rd := range s.Reads {
			mode := "get "
			if rd.Peek {
				mode = "peek"
			}
			fmt.Printf("       %s %s\n", mode, rd.Key)
		}
		if len(s.Needs) > 0 {
			needs := make([]string, len(s.Needs))
			for j, k := range s.Needs {
				needs[j] = k.String()
			}
			fmt.Printf("       needs %s\n", strings.Join(needs, ", "))
		}
		for _, w := range s.Writes {
			fmt.Printf("       writes %s\n", w)
		}
	}
	if err := plan.Validate(); err != nil {
		return err
	}
	fmt.Printf("\n%d steps, dependencies OK\n", plan.Len())
	return nil
}
