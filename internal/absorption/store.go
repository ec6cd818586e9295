package absorption

import (
	"errors"
	"fmt"

	"github.com/mrcode/fpu-scheduler/internal/models"
)

// ErrNoStoredScheme is returned by a Store that has never been saved to
var ErrNoStoredScheme = errors.New("no stored absorption scheme")

// Store persists the absorption table for the host application
type Store interface {
	LoadBlocks() ([]models.AbsorptionBlock, error)
	SaveBlocks(blocks []models.AbsorptionBlock) error
}

// Load reads the scheme from store, seeding it with the bundled default
// table the first time.
func Load(store Store) (*Scheme, error) {
	blocks, err := store.LoadBlocks()
	switch {
	case errors.Is(err, ErrNoStoredScheme):
		scheme, err := DefaultScheme()
		if err != nil {
			return nil, err
		}
		if err := store.SaveBlocks(scheme.Blocks()); err != nil {
			return nil, fmt.Errorf("seeding absorption scheme: %w", err)
		}
		return scheme, nil
	case err != nil:
		return nil, fmt.Errorf("loading absorption scheme: %w", err)
	}
	return NewScheme(blocks)
}

// Save writes the scheme to store
func Save(store Store, scheme *Scheme) error {
	if err := store.SaveBlocks(scheme.Blocks()); err != nil {
		return fmt.Errorf("saving absorption scheme: %w", err)
	}
	return nil
}
