package feeding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/config"
	"github.com/erazemk/krma/internal/metrics"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

// Consumption status values.
const (
	StatusExecuted    = "executed"
	StatusNotExecuted = "not-executed"
	StatusSkipped     = "skipped"
)

// ConsumptionStatus tells whether a date has been executed or was skipped
// for a shortage.
type ConsumptionStatus struct {
	Date   model.Date              `json:"date"`
	Status string                  `json:"status"`
	Entry  *model.ConsumptionEntry `json:"entry,omitempty"`
}

// Execute runs the consumption of one date. A shortage is reported through
// the result, not as an error.
func (s *Service) Execute(ctx context.Context, farmID int64, date model.Date) (*model.ExecutionResult, error) {
	start := time.Now()
	log := s.log.With(zap.Int64("farm_id", farmID), zap.Stringer("date", date))

	res, err := store.ExecuteConsumption(ctx, s.db, farmID, date)
	switch {
	case errors.Is(err, model.ErrAlreadyExecuted):
		s.metrics.ObserveExecution(metrics.OutcomeConflict, time.Since(start))
		return nil, err
	case err != nil:
		s.metrics.ObserveExecution(metrics.OutcomeError, time.Since(start))
		log.Error("executing consumption", zap.Error(err))
		return nil, err
	}

	if res.Status == model.ExecutionSkipped {
		s.metrics.ObserveExecution(metrics.OutcomeSkipped, time.Since(start))
		for _, sh := range res.Shortages {
			s.metrics.ObserveShortage(sh.FeedTypeName)
			log.Warn("feed shortage",
				zap.String("feed_type", sh.FeedTypeName),
				zap.Stringer("required", sh.Required),
				zap.Stringer("available", sh.Available),
			)
		}
		return res, nil
	}

	s.metrics.ObserveExecution(metrics.OutcomeExecuted, time.Since(start))
	s.Invalidate(ctx, farmID)
	log.Info("consumption executed",
		zap.Int("lines", len(res.Entry.Lines)),
		zap.Stringer("total", res.Entry.TotalQuantity()),
	)
	return res, nil
}

// Undo reverses an executed date.
func (s *Service) Undo(ctx context.Context, farmID int64, date model.Date) (*model.UndoResult, error) {
	res, err := store.UndoConsumption(ctx, s.db, farmID, date)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveUndo()
	s.Invalidate(ctx, farmID)
	s.log.Info("consumption undone",
		zap.Int64("farm_id", farmID),
		zap.Stringer("date", date),
		zap.Stringer("restored", res.RestoredTotal),
	)
	return res, nil
}

// ExecuteAuto executes every pending date from the day after the last
// executed date through asOf, looking back at most lookbackDays days. A
// non-positive lookback uses the configured default. Dates already skipped
// for a shortage are passed over; only an explicit Execute retries them.
func (s *Service) ExecuteAuto(ctx context.Context, farmID int64, asOf model.Date, lookbackDays int) (*model.AutoResult, error) {
	if lookbackDays <= 0 {
		lookbackDays = s.cfg.AutoLookbackDays
	}
	if lookbackDays > config.MaxLookbackDays {
		lookbackDays = config.MaxLookbackDays
	}

	from := asOf.AddDays(-(lookbackDays - 1))
	last, err := store.LastExecutedDate(ctx, s.db, farmID, asOf)
	if err != nil {
		return nil, err
	}
	if !last.IsZero() && !last.Before(from) {
		from = last.AddDays(1)
	}

	result := &model.AutoResult{
		From:          from,
		To:            asOf,
		ExecutedDates: []model.Date{},
		SkippedDates:  []model.Date{},
	}
	if from.After(asOf) {
		result.Message = fmt.Sprintf("nothing to execute, last executed %s", last)
		return result, nil
	}

	done, err := store.ExecutedDates(ctx, s.db, farmID, from, asOf)
	if err != nil {
		return nil, err
	}
	skipped, err := store.SkippedDates(ctx, s.db, farmID, from, asOf)
	if err != nil {
		return nil, err
	}
	settled := make(map[string]bool, len(done)+len(skipped))
	for _, d := range append(done, skipped...) {
		settled[d.String()] = true
	}

	log := s.log.With(zap.Int64("farm_id", farmID))
	for _, date := range model.DatesBetween(from, asOf) {
		if settled[date.String()] {
			continue
		}
		res, err := s.Execute(ctx, farmID, date)
		if errors.Is(err, model.ErrAlreadyExecuted) {
			log.Info("date executed concurrently", zap.Stringer("date", date))
			continue
		}
		if err != nil {
			result.Message = summary(result)
			return result, fmt.Errorf("executing %s: %w", date, err)
		}

		if res.Status == model.ExecutionSkipped {
			result.SkippedDates = append(result.SkippedDates, date)
			if result.Shortages == nil {
				result.Shortages = make(map[string][]model.Shortage)
			}
			result.Shortages[date.String()] = res.Shortages
			continue
		}
		result.ExecutedDates = append(result.ExecutedDates, date)
	}

	result.Message = summary(result)
	return result, nil
}

func summary(r *model.AutoResult) string {
	msg := fmt.Sprintf("executed %d date(s) from %s to %s", len(r.ExecutedDates), r.From, r.To)
	if n := len(r.SkippedDates); n > 0 {
		msg += fmt.Sprintf(", skipped %d for shortages", n)
	}
	return msg
}

// Status reports whether date has been executed, with its entry if so.
func (s *Service) Status(ctx context.Context, farmID int64, date model.Date) (*ConsumptionStatus, error) {
	entry, err := store.GetConsumption(ctx, s.db, farmID, date)
	if errors.Is(err, model.ErrNotExecuted) {
		skipped, err := store.IsSkipped(ctx, s.db, farmID, date)
		if err != nil {
			return nil, err
		}
		if skipped {
			return &ConsumptionStatus{Date: date, Status: StatusSkipped}, nil
		}
		return &ConsumptionStatus{Date: date, Status: StatusNotExecuted}, nil
	}
	if err != nil {
		return nil, err
	}
	return &ConsumptionStatus{Date: date, Status: StatusExecuted, Entry: entry}, nil
}
