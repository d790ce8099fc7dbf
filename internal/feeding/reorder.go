package feeding

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/reorder"
	"github.com/erazemk/krma/internal/store"
)

// ReorderReport returns the reorder report of a farm for asOf, from the cache
// when possible.
func (s *Service) ReorderReport(ctx context.Context, farmID int64, asOf model.Date) (*model.ReorderReport, error) {
	log := s.log.With(zap.Int64("farm_id", farmID), zap.Stringer("as_of", asOf))

	if cached, ok, err := s.cache.GetReport(ctx, farmID, asOf); err != nil {
		log.Warn("reading reorder cache", zap.Error(err))
	} else if ok {
		return cached, nil
	}

	stock, err := store.ListStock(ctx, s.db, farmID)
	if err != nil {
		return nil, err
	}
	daily, err := store.DailyConsumption(ctx, s.db, farmID, asOf)
	if err != nil {
		return nil, err
	}
	costs, err := store.AverageUnitCosts(ctx, s.db, farmID)
	if err != nil {
		return nil, err
	}

	inputs := make([]reorder.Input, 0, len(stock))
	for _, st := range stock {
		in := reorder.Input{
			FeedTypeID:       st.FeedTypeID,
			FeedTypeName:     st.FeedTypeName,
			OnHand:           st.OnHand,
			ReorderThreshold: st.ReorderThreshold,
			DailyConsumption: decimal.Zero,
			AverageUnitCost:  decimal.Zero,
		}
		if d, ok := daily[st.FeedTypeID]; ok {
			in.DailyConsumption = d
		}
		if c, ok := costs[st.FeedTypeID]; ok {
			in.AverageUnitCost = c
		}
		inputs = append(inputs, in)
	}

	report := reorder.Report(asOf, inputs, s.cfg.Reorder)
	s.metrics.SetCriticalTypes(farmID, report.CriticalCount)

	if err := s.cache.SetReport(ctx, farmID, report); err != nil {
		log.Warn("writing reorder cache", zap.Error(err))
	}
	return report, nil
}
