package collect

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceBits/pkg/bitcoord"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/samples"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/tiledb"
	"github.com/OpenTraceLab/OpenTraceBits/pkg/violation"
)

// Read is one sample a step reads. Peek reads leave the sample in place.
type Read struct {
	Key  samples.Key
	Peek bool
}

// Step is one unit of a collection pass.
type Step[C bitcoord.Coord[C]] struct {
	Name   string
	Reads  []Read
	Needs  []tiledb.Key
	Writes []tiledb.Key
	Run    func(c *Collector[C]) error
}

// Plan is an ordered list of steps.
type Plan[C bitcoord.Coord[C]] struct {
	steps []Step[C]
}

// NewPlan creates an empty plan.
func NewPlan[C bitcoord.Coord[C]]() *Plan[C] {
	return &Plan[C]{}
}

// Add appends steps to the plan.
func (p *Plan[C]) Add(steps ...Step[C]) *Plan[C] {
	p.steps = append(p.steps, steps...)
	return p
}

// Steps returns the steps in execution order.
func (p *Plan[C]) Steps() []Step[C] {
	return p.steps
}

// Len returns the number of steps.
func (p *Plan[C]) Len() int { return len(p.steps) }

// Validate checks the declared dependencies of every step against the
// steps before it.
func (p *Plan[C]) Validate() error {
	names := make(map[string]bool, len(p.steps))
	writer := make(map[tiledb.Key]string)
	consumer := make(map[samples.Key]string)

	for i, s := range p.steps {
		if s.Name == "" {
			return fmt.Errorf("collect: step %d has no name", i)
		}
		if names[s.Name] {
			return fmt.Errorf("collect: duplicate step name %q", s.Name)
		}
		names[s.Name] = true
		if s.Run == nil {
			return fmt.Errorf("collect: step %q has no Run function", s.Name)
		}

		for _, need := range s.Needs {
			if _, ok := writer[need]; !ok {
				return fmt.Errorf("collect: step %q: %w", s.Name,
					violation.New(violation.Missing, need.String(), "no earlier step writes it"))
			}
		}
		for _, r := range s.Reads {
			if by, ok := consumer[r.Key]; ok {
				return fmt.Errorf("collect: step %q: %w", s.Name,
					violation.New(violation.Exhausted, r.Key.String(), "already consumed by step %q", by))
			}
		}
		for _, r := range s.Reads {
			if !r.Peek {
				consumer[r.Key] = s.Name
			}
		}
		for _, w := range s.Writes {
			if by, ok := writer[w]; ok {
				return fmt.Errorf("collect: step %q: %w", s.Name,
					violation.New(violation.Consistency, w.String(), "also written by step %q", by))
			}
			writer[w] = s.Name
		}
	}
	return nil
}

// Report summarises a finished pass.
type Report struct {
	Steps    int
	Items    int
	Samples  int
	Consumed int
	Leftover []samples.Key
	Elapsed  time.Duration
}

// Run validates the plan and executes it against store. On any error no
// database is returned.
func (p *Plan[C]) Run(store *samples.Store[C], log *zap.Logger) (*tiledb.Db[C], *Report, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	start := time.Now()
	db := tiledb.New[C]()

	for _, s := range p.steps {
		slog := log.With(zap.String("step", s.Name))
		slog.Debug("step start")
		if err := s.Run(NewCollector(store, db, slog)); err != nil {
			slog.Debug("step failed", zap.Error(err))
			return nil, nil, fmt.Errorf("collect: step %q: %w", s.Name, err)
		}
		var missing []error
		for _, w := range s.Writes {
			if !db.Has(w) {
				missing = append(missing, violation.New(violation.Missing, w.String(), "declared but not written"))
			}
		}
		if len(missing) > 0 {
			return nil, nil, fmt.Errorf("collect: step %q: %w", s.Name, errors.Join(missing...))
		}
		slog.Debug("step done")
	}

	report := &Report{
		Steps:    len(p.steps),
		Items:    db.Len(),
		Samples:  store.Len(),
		Consumed: store.Consumed(),
		Leftover: store.Finish(log),
		Elapsed:  time.Since(start),
	}
	log.Info("pass complete",
		zap.Int("steps", report.Steps),
		zap.Int("items", report.Items),
		zap.Int("consumed", report.Consumed),
		zap.Int("leftover", len(report.Leftover)),
		zap.Duration("elapsed", report.Elapsed))
	return db, report, nil
}
