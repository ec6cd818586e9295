package absorption

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

//go:embed default_scheme.json
var defaultSchemeJSON []byte

// ErrMalformedDefaultTable is returned when the bundled default table cannot be loaded
var ErrMalformedDefaultTable = errors.New("malformed default absorption table")

// DefaultBlocks parses the bundled default table
func DefaultBlocks() ([]models.AbsorptionBlock, error) {
	return parseDefault(defaultSchemeJSON)
}

func parseDefault(data []byte) ([]models.AbsorptionBlock, error) {
	blocks, err := ParseBlocks(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDefaultTable, err)
	}
	if _, err := normalize(blocks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDefaultTable, err)
	}
	return blocks, nil
}

// DefaultScheme builds a scheme from the bundled default table
func DefaultScheme() (*Scheme, error) {
	blocks, err := DefaultBlocks()
	if err != nil {
		return nil, err
	}
	return NewScheme(blocks)
}

// MustDefault is DefaultScheme for first-time setup, where a broken bundle is fatal
func MustDefault() *Scheme {
	scheme, err := DefaultScheme()
	if err != nil {
		panic(err)
	}
	return scheme
}
