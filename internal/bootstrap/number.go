package bootstrap

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/worldsmith/worldsmith/internal/fsops"
	"github.com/worldsmith/worldsmith/internal/store"
)

// WorldNumberDigits is the length of the external world identifier.
const WorldNumberDigits = 12

const maxNumberAttempts = 100

// GenerateWorldNumber draws random twelve-digit identifiers until one
// collides with neither an existing world directory nor a store row.
// Both sources are checked: a directory can exist without a row after a
// failed provisioning, and a row without a directory after manual
// cleanup.
func GenerateWorldNumber(ctx context.Context, worldsDir string, st store.Store) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(900000000000))
		if err != nil {
			return "", fmt.Errorf("bootstrap: world number: %w", err)
		}
		candidate := fmt.Sprintf("%012d", n.Int64()+100000000000)
		taken, err := fsops.FindDirNamed(worldsDir, candidate)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		exists, err := st.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("bootstrap: world number lookup: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("bootstrap: no free world number after %d attempts", maxNumberAttempts)
}
