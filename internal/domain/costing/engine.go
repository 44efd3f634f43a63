// Package costing implements FIFO cost attribution over the lot ledger.
package costing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/lot"
	"tillpoint/pkg/logger"
)

var tracer = otel.Tracer("tillpoint/costing")

// Consumption is the part of one lot used for a demand.
type Consumption struct {
	LotID    id.ID          `json:"lot_id"`
	Quantity types.Quantity `json:"quantity"`
	UnitCost types.Money    `json:"unit_cost"`
}

// Cost returns Quantity × UnitCost.
func (c Consumption) Cost() types.Money {
	return c.Quantity.Mul(c.UnitCost)
}

// Result is the costed outcome of a demand.
type Result struct {
	// UnitCost is TotalCost / quantity, rounded to types.UnitCostScale.
	UnitCost types.Money
	// TotalCost is exact: Σ consumed quantity × lot cost plus ShortfallCost.
	TotalCost types.Money
	Consumed  []Consumption
	// Shortfall is the quantity not covered by any lot. Always zero under PolicyReject.
	Shortfall     types.Quantity
	ShortfallCost types.Money
}

// Engine drains lots oldest-first. It must run inside the caller's
// transaction so the lot reads and decrements share one lock scope.
type Engine struct {
	lots   lot.Repository
	policy Policy
}

func NewEngine(lots lot.Repository, policy Policy) *Engine {
	if policy == "" {
		policy = DefaultPolicy
	}
	return &Engine{lots: lots, policy: policy}
}

// Policy returns the insufficient-stock policy in effect.
func (e *Engine) Policy() Policy {
	return e.policy
}

// CostAndConsume attributes cost to quantityNeeded units of a product at a
// location and decrements the lots it used.
func (e *Engine) CostAndConsume(
	ctx context.Context,
	tenantID string,
	productID id.ID,
	locationID *id.ID,
	quantityNeeded types.Quantity,
) (Result, error) {
	ctx, span := tracer.Start(ctx, "costing.CostAndConsume",
		trace.WithAttributes(
			attribute.String("product_id", productID.String()),
			attribute.String("location_id", id.String(locationID)),
			attribute.String("quantity", quantityNeeded.String()),
			attribute.String("policy", e.policy.String()),
		),
	)
	defer span.End()

	if !quantityNeeded.IsPositive() {
		return Result{}, apperror.NewInvalidInputQuantity(quantityNeeded.String())
	}

	lots, err := e.lots.ListOldestFirst(ctx, tenantID, productID, locationID)
	if err != nil {
		span.RecordError(err)
		return Result{}, apperror.Ensure(err)
	}

	available := lot.TotalAvailable(lots)
	if available.LessThan(quantityNeeded) {
		if e.policy == PolicyReject || (e.policy == PolicyLastCost && len(lots) == 0) {
			return Result{}, apperror.NewInsufficientStock(
				productID.String(), quantityNeeded.String(), available.String(),
			).WithDetail("location_id", id.String(locationID))
		}
	}

	res := Result{
		TotalCost:     types.Zero(),
		Shortfall:     types.Zero(),
		ShortfallCost: types.Zero(),
	}
	stillNeeded := quantityNeeded

	for i := range lots {
		if !stillNeeded.IsPositive() {
			break
		}
		l := &lots[i]
		if !l.Available() {
			continue
		}

		take := types.Min(l.QtyRemaining, stillNeeded)
		if err := e.lots.Decrement(ctx, tenantID, l.ID, take); err != nil {
			span.RecordError(err)
			return Result{}, apperror.Ensure(err)
		}
		if err := l.Take(take); err != nil {
			return Result{}, err
		}

		c := Consumption{LotID: l.ID, Quantity: take, UnitCost: l.UnitCost}
		res.Consumed = append(res.Consumed, c)
		res.TotalCost = res.TotalCost.Add(c.Cost())
		stillNeeded = stillNeeded.Sub(take)
	}

	if stillNeeded.IsPositive() {
		res.Shortfall = stillNeeded
		switch e.policy {
		case PolicyLastCost:
			// Newest lot by FIFO order, exhausted or not.
			res.ShortfallCost = stillNeeded.Mul(lots[len(lots)-1].UnitCost)
		case PolicyZeroCost:
			logger.Warn(ctx, "insufficient stock costed at zero",
				"product_id", productID,
				"location_id", id.String(locationID),
				"requested", quantityNeeded.String(),
				"shortfall", stillNeeded.String(),
			)
		}
		res.TotalCost = res.TotalCost.Add(res.ShortfallCost)
	}

	res.UnitCost = types.UnitCost(res.TotalCost, quantityNeeded)

	span.SetAttributes(
		attribute.Int("lots_consumed", len(res.Consumed)),
		attribute.String("total_cost", res.TotalCost.String()),
		attribute.String("shortfall", res.Shortfall.String()),
	)
	return res, nil
}
