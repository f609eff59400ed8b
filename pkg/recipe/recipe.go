// Package recipe reads declarative collection recipes and turns them into
// collection plans.
//
// A recipe is a YAML table of steps. Each step names the attribute it
// classifies, the classification kind, the sample values it reads and the
// already-collected items whose effect must be subtracted from its Diffs
// first:
//
//	family: frame
//	steps:
//	  - name: slice-mode
//	    kind: enum_default
//	    tile: CLB
//	    bel: SLICE0
//	    attr: MODE
//	    values: [FF]
//	    default: LATCH
//	  - name: slice-ff-enable
//	    kind: bit
//	    tile: CLB
//	    bel: SLICE0
//	    attr: FFEN
//	    subtract:
//	      - {bel: SLICE0, attr: MODE, from: FF, to: LATCH}
package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Kinds accepted in a step.
const (
	KindBit         = "bit"
	KindBitInv      = "bit_inv"
	KindBitWide     = "bit_wide"
	KindBitvec      = "bitvec"
	KindEnum        = "enum"
	KindEnumDefault = "enum_default"
	KindEnumBool    = "enum_bool"
	KindEnumInt     = "enum_int"
)

// Recipe is an ordered table of collection steps for one coordinate family.
type Recipe struct {
	Family string     `yaml:"family" validate:"required,oneof=frame fuse"`
	Steps  []StepSpec `yaml:"steps" validate:"required,min=1,dive"`
}

// StepSpec declares one classification.
type StepSpec struct {
	Name string `yaml:"name" validate:"required"`
	Kind string `yaml:"kind" validate:"required,oneof=bit bit_inv bit_wide bitvec enum enum_default enum_bool enum_int"`

	// Tile names a single tile kind; Tiles repeats the step across several.
	Tile  string   `yaml:"tile" validate:"required_without=Tiles"`
	Tiles []string `yaml:"tiles" validate:"omitempty,dive,required"`
	Bel   string   `yaml:"bel" validate:"required"`
	Attr  string   `yaml:"attr" validate:"required"`

	// Values lists the sampled values. Left empty, enum kinds take every
	// value recorded for the attribute and bit kinds read "1".
	Values  []string `yaml:"values" validate:"omitempty,dive,required"`
	Default string   `yaml:"default"`
	Width   int      `yaml:"width" validate:"gte=0,lte=64"`
	Order   string   `yaml:"order" validate:"omitempty,oneof=first-seen coord value mux"`
	Peek    bool     `yaml:"peek"`

	Subtract []Subtraction `yaml:"subtract" validate:"omitempty,dive"`
}

// Subtraction removes the change of a collected item between two of its
// values from every Diff of a step. From is the value the samples hold and
// To the value of the baseline image. Flags use 0 and 1, bit vectors
// their unsigned integer value.
type Subtraction struct {
	Tile string   `yaml:"tile"`
	Bel  string   `yaml:"bel" validate:"required"`
	Attr string   `yaml:"attr" validate:"required"`
	From string   `yaml:"from" validate:"required"`
	To   string   `yaml:"to" validate:"required"`
	Only []string `yaml:"only"`
}

// TileNames returns the tiles the step runs on.
func (s StepSpec) TileNames() []string {
	if len(s.Tiles) > 0 {
		return s.Tiles
	}
	return []string{s.Tile}
}

var validate = validator.New()

// Validate checks field constraints and the kind-specific arity rules.
func (r *Recipe) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("recipe: %w", err)
	}
	names := make(map[string]bool, len(r.Steps))
	var errs []error
	for i, s := range r.Steps {
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("step %d: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
		if s.Tile != "" && len(s.Tiles) > 0 {
			errs = append(errs, fmt.Errorf("step %q: tile and tiles are exclusive", s.Name))
		}
		if err := s.checkArity(); err != nil {
			errs = append(errs, fmt.Errorf("step %q: %w", s.Name, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("recipe: %w", err)
	}
	return nil
}

func (s StepSpec) checkArity() error {
	switch s.Kind {
	case KindBit, KindBitInv, KindBitWide:
		if len(s.Values) > 1 {
			return fmt.Errorf("kind %s reads one value, got %d", s.Kind, len(s.Values))
		}
	case KindBitvec:
		if s.Width == 0 {
			return fmt.Errorf("kind bitvec needs a width")
		}
		if len(s.Values) > 0 {
			return fmt.Errorf("kind bitvec reads values 0..width-1 and takes no value list")
		}
	case KindEnumDefault:
		if s.Default == "" {
			return fmt.Errorf("kind enum_default needs a default")
		}
	case KindEnumBool:
		if len(s.Values) != 2 {
			return fmt.Errorf("kind enum_bool needs exactly two values, got %d", len(s.Values))
		}
	case KindEnumInt:
		for _, v := range s.Values {
			if _, err := strconv.ParseUint(v, 10, 32); err != nil {
				return fmt.Errorf("kind enum_int value %q is not an unsigned integer", v)
			}
		}
	}
	if s.Default != "" && s.Kind != KindEnumDefault {
		return fmt.Errorf("default is only valid for enum_default")
	}
	if s.Order != "" && s.Kind != KindEnum && s.Kind != KindEnumDefault {
		return fmt.Errorf("order is only valid for enum kinds")
	}
	return nil
}

// Parse decodes and validates a recipe. Unknown fields are rejected.
func Parse(data []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var r Recipe
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("recipe: failed to parse YAML: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Load reads a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipe: failed to read file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}
