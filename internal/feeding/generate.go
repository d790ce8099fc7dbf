package feeding

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/krma/internal/dosage"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/store"
)

const dosageWorkers = 4

// GenerateRequest drives smart schedule generation.
type GenerateRequest struct {
	From    model.Date `json:"from"`
	Replace bool       `json:"replace"`
	AsOf    model.Date `json:"as_of"` // reference date for ages; zero means From
}

// PenSkip explains why a pen got no schedules.
type PenSkip struct {
	PenID   int64  `json:"pen_id"`
	PenName string `json:"pen_name"`
	Reason  string `json:"reason"`
}

// GenerateResult lists what generation created and what it left alone.
type GenerateResult struct {
	Created []model.Schedule `json:"created"`
	Skipped []PenSkip        `json:"skipped"`
}

type penPlan struct {
	pen       model.Pen
	schedules []model.Schedule
	skip      string
}

// GenerateSchedules creates one generated schedule per pen and feed category
// from the dosage engine's recommendations. For each category the catalog
// type with the most stock on hand is used. All pens are written together or
// not at all.
func (s *Service) GenerateSchedules(ctx context.Context, farmID int64, req GenerateRequest) (*GenerateResult, error) {
	if req.From.IsZero() {
		return nil, model.Invalidf("from date required")
	}
	if req.AsOf.IsZero() {
		req.AsOf = req.From
	}

	farm, err := store.GetFarm(ctx, s.db, farmID)
	if err != nil {
		return nil, err
	}
	pens, err := store.ListPens(ctx, s.db, farmID)
	if err != nil {
		return nil, err
	}
	stock, err := store.ListStock(ctx, s.db, farmID)
	if err != nil {
		return nil, err
	}
	picks := pickFeedTypes(stock)

	plans := make([]penPlan, len(pens))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dosageWorkers)
	for i, pen := range pens {
		i, pen := i, pen
		g.Go(func() error {
			plan, err := s.planPen(gctx, farmID, dosage.ProfileFor(farm.Species), pen, picks, req)
			if err != nil {
				return fmt.Errorf("planning pen %s: %w", pen.Name, err)
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &GenerateResult{Skipped: []PenSkip{}}
	var batches []store.PenSchedules
	for _, plan := range plans {
		if plan.skip != "" {
			result.Skipped = append(result.Skipped, PenSkip{PenID: plan.pen.ID, PenName: plan.pen.Name, Reason: plan.skip})
			continue
		}
		batches = append(batches, store.PenSchedules{PenID: plan.pen.ID, Schedules: plan.schedules})
	}

	result.Created, err = store.ReplacePenSchedules(ctx, s.db, farmID, req.Replace, batches)
	if err != nil {
		return nil, fmt.Errorf("writing generated schedules: %w", err)
	}

	s.Invalidate(ctx, farmID)
	s.log.Info("schedules generated",
		zap.Int64("farm_id", farmID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped_pens", len(result.Skipped)),
	)
	return result, nil
}

func (s *Service) planPen(ctx context.Context, farmID int64, profile dosage.Profile, pen model.Pen, picks []model.StockTotal, req GenerateRequest) (penPlan, error) {
	plan := penPlan{pen: pen}
	if len(picks) == 0 {
		plan.skip = "no feed types in catalog"
		return plan, nil
	}

	animals, err := store.ListPenOccupants(ctx, s.db, farmID, pen.ID)
	if err != nil {
		return plan, err
	}

	end := req.From.AddMonths(1).AddDays(-1)
	for _, ft := range picks {
		rec, err := s.dosage.Recommend(dosage.Input{
			Animals:  animals,
			Category: ft.Category,
			Profile:  profile,
			AsOf:     req.AsOf,
		})
		if dosage.IsNoReference(err) {
			continue
		}
		if err != nil {
			return plan, err
		}
		if rec == nil {
			plan.skip = "no live occupants"
			return plan, nil
		}
		if !rec.Amount.IsPositive() {
			continue
		}
		plan.schedules = append(plan.schedules, model.Schedule{
			Target:          model.PenTarget{PenID: pen.ID},
			FeedTypeID:      ft.FeedTypeID,
			QuantityPerHead: rec.Amount,
			MealsPerDay:     rec.MealCount,
			StartOn:         req.From,
			EndOn:           end,
			Active:          true,
			Source:          model.ScheduleSourceGenerated,
			Notes:           rec.Justification,
		})
	}

	if len(plan.schedules) == 0 {
		plan.skip = "no recommendation above zero"
	}
	return plan, nil
}

// pickFeedTypes returns, per category present in the catalog, the feed type
// with the largest on-hand quantity. Ties go to the lowest id.
func pickFeedTypes(stock []model.StockTotal) []model.StockTotal {
	best := map[model.FeedCategory]model.StockTotal{}
	for _, st := range stock {
		cur, ok := best[st.Category]
		if !ok || st.OnHand.GreaterThan(cur.OnHand) ||
			(st.OnHand.Equal(cur.OnHand) && st.FeedTypeID < cur.FeedTypeID) {
			best[st.Category] = st
		}
	}

	var picks []model.StockTotal
	for _, c := range model.FeedCategories {
		if st, ok := best[c]; ok {
			picks = append(picks, st)
		}
	}
	return picks
}

// Recommend doses an explicit group of animals using the farm's profile.
func (s *Service) Recommend(ctx context.Context, farmID int64, animals []model.Animal, category model.FeedCategory, asOf model.Date) (*dosage.Recommendation, error) {
	farm, err := store.GetFarm(ctx, s.db, farmID)
	if err != nil {
		return nil, err
	}
	return s.dosage.Recommend(dosage.Input{
		Animals:  animals,
		Category: category,
		Profile:  dosage.ProfileFor(farm.Species),
		AsOf:     asOf,
	})
}

// RecommendForPen doses the live occupants of a pen.
func (s *Service) RecommendForPen(ctx context.Context, farmID, penID int64, category model.FeedCategory, asOf model.Date) (*dosage.Recommendation, error) {
	if _, err := store.GetPen(ctx, s.db, farmID, penID); err != nil {
		return nil, err
	}
	animals, err := store.ListPenOccupants(ctx, s.db, farmID, penID)
	if err != nil {
		return nil, err
	}
	return s.Recommend(ctx, farmID, animals, category, asOf)
}
