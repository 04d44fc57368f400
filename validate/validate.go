package validate

import (
	"github.com/pkg/errors"

	"github.com/dselans/ripgzip/checkpoint/types"
)

// Checkpoint checks a checkpoint loaded from a store before it is trusted.
func Checkpoint(cp *types.Checkpoint) error {
	if cp == nil {
		return errors.New("checkpoint is nil")
	}

	if cp.Completed == nil {
		return errors.New("checkpoint has no completed map")
	}

	for path, e := range cp.Completed {
		if e == nil {
			return errors.Errorf("checkpoint entry for '%s' is nil", path)
		}

		if e.Path == "" {
			return errors.Errorf("checkpoint entry for '%s' has an empty path", path)
		}

		if e.Path != path {
			return errors.Errorf("checkpoint entry for '%s' refers to '%s'", path, e.Path)
		}

		if e.Size < 0 || e.Written < 0 {
			return errors.Errorf("checkpoint entry for '%s' has a negative size", path)
		}
	}

	return nil
}
