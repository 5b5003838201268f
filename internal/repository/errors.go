package repository

import (
	"fmt"

	"widgetrag/internal/domain"
)

// persistErr tags a database failure with domain.ErrPersistence while keeping
// the driver error in the chain.
func persistErr(op string, err error) error {
	return fmt.Errorf("%s failed: %w: %w", op, domain.ErrPersistence, err)
}
