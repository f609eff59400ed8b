// Package harvest runs a complete collection pass: it loads sample files,
// builds the plan a recipe describes, runs it and checks what was left
// over. It also merges databases of several device variants.
package harvest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/collect"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/dbio"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/recipe"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/sampletext"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
)

// Progress reports the state of a pass.
type Progress struct {
	Phase   string // "loading", "collecting", "done"
	File    string // File just loaded
	Index   int    // Files loaded so far
	Total   int    // Number of files
	Samples int    // Samples in the store
}

// Result is the outcome of a successful pass.
type Result[C bitcoord.Coord[C]] struct {
	PassID uuid.UUID
	Db     *tiledb.Db[C]
	Report *collect.Report
	// Leftover holds the unconsumed samples of tiles the pass collected.
	Leftover []samples.Key
}

// LoadSamples parses sample files in parallel and inserts their records
// into a new store in file order, so a conflict always names the later
// file.
func LoadSamples[C bitcoord.Coord[C]](
	ctx context.Context,
	paths []string,
	family bitcoord.Family[C],
	workers int,
	progress chan<- Progress,
) (*samples.Store[C], error) {
	parsed := make([][]sampletext.Record[C], len(paths))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := sampletext.NewParser()
			if err != nil {
				return err
			}
			f, err := p.ParseFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			recs, err := sampletext.Records(f, family)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			parsed[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("harvest: load samples: %w", err)
	}

	store := samples.NewStore[C]()
	for i, recs := range parsed {
		for _, r := range recs {
			if err := store.Insert(r.Key, r.Diff); err != nil {
				return nil, fmt.Errorf("harvest: %s: %w", paths[i], err)
			}
		}
		send(ctx, progress, Progress{Phase: "loading", File: paths[i], Index: i + 1, Total: len(paths), Samples: store.Len()})
	}
	return store, nil
}

// Run loads the samples, runs the recipe restricted to the tiles cfg
// selects and returns the database.
func Run[C bitcoord.Coord[C]](
	ctx context.Context,
	cfg *Config,
	family bitcoord.Family[C],
	r *recipe.Recipe,
	paths []string,
	log *zap.Logger,
	progress chan<- Progress,
) (*Result[C], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Family != family.Name {
		return nil, fmt.Errorf("harvest: config family %q does not match %q", cfg.Family, family.Name)
	}
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.New()
	log = log.With(zap.Stringer("pass", id))
	log.Info("pass start", zap.Int("files", len(paths)), zap.Int("steps", len(r.Steps)))

	store, err := LoadSamples(ctx, paths, family, cfg.Workers, progress)
	if err != nil {
		return nil, err
	}
	log.Debug("samples loaded", zap.Int("samples", store.Len()))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	send(ctx, progress, Progress{Phase: "collecting", Index: len(paths), Total: len(paths), Samples: store.Len()})

	plan, err := recipe.Build(FilterRecipe(r, cfg), family, store)
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	db, report, err := plan.Run(store, log)
	if err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}

	var leftover []samples.Key
	for _, k := range report.Leftover {
		if cfg.ShouldCollectTile(k.Tile) {
			leftover = append(leftover, k)
		}
	}
	if cfg.StrictLeftovers && len(leftover) > 0 {
		return nil, fmt.Errorf("harvest: %d samples left unconsumed, first %s", len(leftover), leftover[0])
	}

	send(ctx, progress, Progress{Phase: "done", Index: len(paths), Total: len(paths), Samples: store.Len()})
	return &Result[C]{PassID: id, Db: db, Report: report, Leftover: leftover}, nil
}

// FilterRecipe returns a copy of r restricted to the tiles cfg selects.
// Steps left without tiles are dropped.
func FilterRecipe(r *recipe.Recipe, cfg *Config) *recipe.Recipe {
	out := &recipe.Recipe{Family: r.Family}
	for _, s := range r.Steps {
		var tiles []string
		for _, t := range s.TileNames() {
			if cfg.ShouldCollectTile(t) {
				tiles = append(tiles, t)
			}
		}
		if len(tiles) == 0 {
			continue
		}
		if len(s.Tiles) > 0 {
			s.Tiles = tiles
		}
		out.Steps = append(out.Steps, s)
	}
	return out
}

// MergeFiles loads the databases of several variants and merges them in
// order into the first.
func MergeFiles[C bitcoord.Coord[C]](paths []string, family bitcoord.Family[C], neutral bool, log *zap.Logger) (*tiledb.Db[C], error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("harvest: nothing to merge")
	}
	if log == nil {
		log = zap.NewNop()
	}
	acc, err := dbio.Load(paths[0], family)
	if err != nil {
		return nil, err
	}
	for _, path := range paths[1:] {
		other, err := dbio.Load(path, family)
		if err != nil {
			return nil, err
		}
		if err := acc.Merge(other, neutral); err != nil {
			return nil, fmt.Errorf("harvest: merge %s: %w", path, err)
		}
		log.Debug("merged", zap.String("file", path), zap.Int("items", acc.Len()))
	}
	return acc, nil
}

func send(ctx context.Context, ch chan<- Progress, p Progress) {
	if ch == nil {
		return
	}
	select {
	case ch <- p:
	case <-ctx.Done():
	}
}
