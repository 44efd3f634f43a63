package memory

import (
	"context"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/lot"
)

// Lots returns the store as a lot.Repository.
func (s *Store) Lots() lot.Repository {
	return lotRepo{s}
}

type lotRepo struct{ s *Store }

func (r lotRepo) ListOldestFirst(ctx context.Context, tenantID string, productID id.ID, locationID *id.ID) ([]lot.Lot, error) {
	var out []lot.Lot
	err := r.s.view(ctx, func(d *state) error {
		for _, l := range d.lots {
			if l.TenantID == tenantID && l.ProductID == productID && id.Equal(l.LocationID, locationID) {
				out = append(out, l)
			}
		}
		return nil
	})
	lot.SortOldestFirst(out)
	return out, err
}

func (r lotRepo) Decrement(ctx context.Context, tenantID string, lotID id.ID, amount types.Quantity) error {
	return r.s.view(ctx, func(d *state) error {
		l, ok := d.lots[lotID]
		if !ok || l.TenantID != tenantID {
			return apperror.NewInvalidQuantity(lotID.String(), amount.String()).
				WithDetail("reason", "lot not found")
		}
		if err := l.Take(amount); err != nil {
			return err
		}
		d.lots[lotID] = l
		return nil
	})
}

func (r lotRepo) Create(ctx context.Context, l *lot.Lot) error {
	return r.s.view(ctx, func(d *state) error {
		if _, exists := d.lots[l.ID]; exists {
			return apperror.NewDuplicate("lot", "id", l.ID.String())
		}
		d.lots[l.ID] = *l
		return nil
	})
}

func (r lotRepo) Get(ctx context.Context, tenantID string, lotID id.ID) (*lot.Lot, error) {
	var out *lot.Lot
	err := r.s.view(ctx, func(d *state) error {
		l, ok := d.lots[lotID]
		if !ok || l.TenantID != tenantID {
			return apperror.NewNotFound("lot", lotID.String())
		}
		out = &l
		return nil
	})
	return out, err
}
