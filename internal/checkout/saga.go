package checkout

import (
	"context"

	"github.com/vitalcart/storefront-backend/internal/auth"
	"go.uber.org/multierr"
)

// saga collects compensations for steps that created state outside a transaction.
type saga struct {
	undos []auth.Undo
}

func (s *saga) add(undo auth.Undo) {
	if undo != nil {
		s.undos = append(s.undos, undo)
	}
}

// rollback runs every compensation in reverse order and combines their errors.
func (s *saga) rollback(ctx context.Context) error {
	var err error
	for i := len(s.undos) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.undos[i](ctx))
	}
	s.undos = nil
	return err
}
