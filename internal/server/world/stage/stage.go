// Package stage defines the generation stages a chunk moves through.
package stage

import "fmt"

// Stage is one step of a chunk's generation pipeline. Stages are ordered;
// a chunk only ever moves to the next one, except when regenerated.
type Stage uint8

const (
	Empty Stage = iota
	// StructureSeed: structures originating in the chunk are planned.
	StructureSeed
	// StructureReference: overlapping structures from nearby chunks are known.
	StructureReference
	// Noise: base terrain is filled in.
	Noise
	// Full: structures are placed and the chunk is final.
	Full

	// Count is the number of stages.
	Count = int(Full) + 1
)

// Feature is the terminal stage under its other name.
const Feature = Full

var names = [Count]string{"empty", "structure_seed", "structure_reference", "noise", "full"}

func (s Stage) String() string {
	if int(s) < Count {
		return names[s]
	}
	return fmt.Sprintf("stage(%d)", uint8(s))
}

// Next returns the stage after s. Next(Full) is Full.
func (s Stage) Next() Stage {
	if s >= Full {
		return Full
	}
	return s + 1
}

// Terminal reports whether s is the last stage.
func (s Stage) Terminal() bool { return s == Full }

// Parse resolves a stage name. "feature" is accepted for Full.
func Parse(name string) (Stage, error) {
	if name == "feature" {
		return Full, nil
	}
	for i, n := range names {
		if n == name {
			return Stage(i), nil
		}
	}
	return Empty, fmt.Errorf("unknown stage %q", name)
}

func (s Stage) MarshalText() ([]byte, error) {
	if int(s) >= Count {
		return nil, fmt.Errorf("invalid stage %d", uint8(s))
	}
	return []byte(names[s]), nil
}

func (s *Stage) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
