// Package absorption maps FPU values to absorption durations through an
// ordered, user-editable table of blocks.
package absorption

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

// Table invariant violations. A rejected operation leaves the table unchanged.
var (
	ErrDuplicateMaxFpu = errors.New("absorption block with this max FPU already exists")
	ErrLastBlock       = errors.New("cannot remove the last absorption block")
	ErrBlockNotFound   = errors.New("absorption block not found")
	ErrInvalidBlock    = errors.New("invalid absorption block")
	ErrEmptyScheme     = errors.New("absorption scheme needs at least one block")
)

// Scheme is an ordered set of absorption blocks, ascending by MaxFpu
// with no duplicate MaxFpu and never empty.
type Scheme struct {
	blocks []models.AbsorptionBlock
}

// NewScheme builds a scheme from blocks in any order
func NewScheme(blocks []models.AbsorptionBlock) (*Scheme, error) {
	sorted, err := normalize(blocks)
	if err != nil {
		return nil, err
	}
	return &Scheme{blocks: sorted}, nil
}

// normalize validates blocks and returns a sorted copy
func normalize(blocks []models.AbsorptionBlock) ([]models.AbsorptionBlock, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyScheme
	}
	sorted := make([]models.AbsorptionBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MaxFpu < sorted[j].MaxFpu
	})
	for i, b := range sorted {
		if err := validateBlock(b); err != nil {
			return nil, err
		}
		if i > 0 && sorted[i-1].MaxFpu == b.MaxFpu {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateMaxFpu, b.MaxFpu)
		}
	}
	return sorted, nil
}

func validateBlock(b models.AbsorptionBlock) error {
	if math.IsNaN(b.MaxFpu) || b.MaxFpu < 0 {
		return fmt.Errorf("%w: max FPU must be >= 0, got %v", ErrInvalidBlock, b.MaxFpu)
	}
	if math.IsNaN(b.AbsorptionTimeHours) || b.AbsorptionTimeHours <= 0 {
		return fmt.Errorf("%w: absorption time must be > 0, got %v", ErrInvalidBlock, b.AbsorptionTimeHours)
	}
	return nil
}

// Blocks returns a copy of the blocks in ascending order
func (s *Scheme) Blocks() []models.AbsorptionBlock {
	out := make([]models.AbsorptionBlock, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// Len returns the number of blocks
func (s *Scheme) Len() int {
	return len(s.blocks)
}

// Highest returns the block with the largest MaxFpu. ok is false for a
// scheme without blocks.
func (s *Scheme) Highest() (block models.AbsorptionBlock, ok bool) {
	if len(s.blocks) == 0 {
		return models.AbsorptionBlock{}, false
	}
	return s.blocks[len(s.blocks)-1], true
}

// Lookup returns the absorption time in hours of the smallest block whose
// MaxFpu is >= fpu. ok is false when fpu exceeds every block; callers treat
// that as "not yet determinable", not as a failure.
func (s *Scheme) Lookup(fpu float64) (hours float64, ok bool) {
	i := s.index(fpu)
	if i == len(s.blocks) {
		return 0, false
	}
	return s.blocks[i].AbsorptionTimeHours, true
}

// LookupWithPolicy applies the overflow policy to values above the highest block
func (s *Scheme) LookupWithPolicy(fpu float64, policy string) (hours float64, ok bool) {
	hours, ok = s.Lookup(fpu)
	if !ok && policy == models.OverflowHighest {
		if highest, found := s.Highest(); found {
			return highest.AbsorptionTimeHours, true
		}
	}
	return hours, ok
}

// index returns the position of the first block with MaxFpu >= fpu
func (s *Scheme) index(fpu float64) int {
	return sort.Search(len(s.blocks), func(i int) bool {
		return s.blocks[i].MaxFpu >= fpu
	})
}

// find returns the position of the block with exactly this MaxFpu
func (s *Scheme) find(maxFpu float64) (int, bool) {
	i := s.index(maxFpu)
	return i, i < len(s.blocks) && s.blocks[i].MaxFpu == maxFpu
}

// Add inserts a block keeping ascending order
func (s *Scheme) Add(block models.AbsorptionBlock) error {
	if err := validateBlock(block); err != nil {
		return err
	}
	i, exists := s.find(block.MaxFpu)
	if exists {
		return fmt.Errorf("%w: %v", ErrDuplicateMaxFpu, block.MaxFpu)
	}
	s.blocks = append(s.blocks, models.AbsorptionBlock{})
	copy(s.blocks[i+1:], s.blocks[i:])
	s.blocks[i] = block
	return nil
}

// Update replaces the block identified by oldMaxFpu. The new block may move
// to another position but must not collide with a different block.
func (s *Scheme) Update(oldMaxFpu float64, block models.AbsorptionBlock) error {
	if err := validateBlock(block); err != nil {
		return err
	}
	i, exists := s.find(oldMaxFpu)
	if !exists {
		return fmt.Errorf("%w: %v", ErrBlockNotFound, oldMaxFpu)
	}
	if block.MaxFpu != oldMaxFpu {
		if _, clash := s.find(block.MaxFpu); clash {
			return fmt.Errorf("%w: %v", ErrDuplicateMaxFpu, block.MaxFpu)
		}
	}

	updated := s.Blocks()
	updated[i] = block
	sort.Slice(updated, func(a, b int) bool {
		return updated[a].MaxFpu < updated[b].MaxFpu
	})
	s.blocks = updated
	return nil
}

// Remove deletes the block with this MaxFpu. The last block cannot be removed.
func (s *Scheme) Remove(maxFpu float64) error {
	i, exists := s.find(maxFpu)
	if !exists {
		return fmt.Errorf("%w: %v", ErrBlockNotFound, maxFpu)
	}
	if len(s.blocks) == 1 {
		return ErrLastBlock
	}
	s.blocks = append(s.blocks[:i:i], s.blocks[i+1:]...)
	return nil
}

// ResetToDefault atomically replaces all blocks. Invalid replacements are
// rejected and the current table is kept.
func (s *Scheme) ResetToDefault(blocks []models.AbsorptionBlock) error {
	sorted, err := normalize(blocks)
	if err != nil {
		return err
	}
	s.blocks = sorted
	return nil
}

// Validate checks the table invariants
func (s *Scheme) Validate() error {
	_, err := normalize(s.blocks)
	return err
}

// MarshalJSON encodes the scheme in the bundled table format
func (s *Scheme) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.blocks)
}

// UnmarshalJSON decodes and validates a table in the bundled format
func (s *Scheme) UnmarshalJSON(data []byte) error {
	blocks, err := ParseBlocks(data)
	if err != nil {
		return err
	}
	return s.ResetToDefault(blocks)
}

// ParseBlocks decodes a JSON array of {"max_fpu", "absorption_time"} objects
func ParseBlocks(data []byte) ([]models.AbsorptionBlock, error) {
	var blocks []models.AbsorptionBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return nil, fmt.Errorf("parsing absorption blocks: %w", err)
	}
	return blocks, nil
}
