package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/erazemk/krma/internal/config"
	"github.com/erazemk/krma/internal/feeding"
	"github.com/erazemk/krma/internal/logger"
	"github.com/erazemk/krma/internal/model"
	"github.com/erazemk/krma/internal/notify"
	"github.com/erazemk/krma/internal/store"
)

const runTimeout = 5 * time.Minute

// Scheduler runs auto consumption and reorder alerts for every farm on a
// cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	spec     string
	loc      *time.Location
	svc      *feeding.Service
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// New validates the schedule and builds a stopped scheduler.
func New(cfg config.SchedulerConfig, svc *feeding.Service, notifier notify.Notifier, log *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("parsing cron schedule: %w", err)
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		spec:     cfg.Cron,
		loc:      loc,
		svc:      svc,
		notifier: notifier,
		logger:   logger.Named(log, "scheduler"),
		now:      time.Now,
	}, nil
}

// Start registers the nightly job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("cron", s.spec), zap.String("timezone", s.loc.String()))
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("scheduling auto consumption: %w", err)
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce processes every farm for today in the scheduler's timezone. Errors
// are logged and do not stop other farms.
func (s *Scheduler) RunOnce(ctx context.Context) {
	farms, err := store.ListFarms(ctx, s.svc.DB())
	if err != nil {
		s.logger.Error("listing farms", zap.Error(err))
		return
	}

	today := model.DateOf(s.now().In(s.loc))
	for _, farm := range farms {
		if err := s.RunFarm(ctx, farm, today); err != nil {
			s.logger.Error("nightly run failed", zap.Int64("farm_id", farm.ID), zap.Error(err))
		}
	}
}

// RunFarm executes pending consumption for one farm and sends an alert when
// dates were skipped or stock is critical.
func (s *Scheduler) RunFarm(ctx context.Context, farm model.Farm, today model.Date) error {
	log := s.logger.With(zap.Int64("farm_id", farm.ID))

	auto, err := s.svc.ExecuteAuto(ctx, farm.ID, today, 0)
	if err != nil {
		return err
	}
	log.Info("auto consumption finished", zap.String("summary", auto.Message))

	report, err := s.svc.ReorderReport(ctx, farm.ID, today)
	if err != nil {
		return err
	}

	msg := alertMessage(farm, auto, report)
	if msg == "" {
		return nil
	}
	if err := s.notifier.Notify(ctx, msg); err != nil {
		return fmt.Errorf("sending alert: %w", err)
	}
	log.Info("alert sent")
	return nil
}

func alertMessage(farm model.Farm, auto *model.AutoResult, report *model.ReorderReport) string {
	var b strings.Builder

	for _, d := range auto.SkippedDates {
		var short []string
		for _, sh := range auto.Shortages[d.String()] {
			short = append(short, fmt.Sprintf("%s %s/%s kg", sh.FeedTypeName, sh.Available, sh.Required))
		}
		fmt.Fprintf(&b, "Feeding on %s was not recorded, short: %s\n", d, strings.Join(short, ", "))
	}

	for _, sg := range report.Suggestions {
		if sg.Urgency != model.UrgencyCritical {
			continue
		}
		fmt.Fprintf(&b, "Critical: %s %s kg left", sg.FeedTypeName, sg.OnHand)
		if sg.DaysRemaining != nil {
			fmt.Fprintf(&b, " (%.1f days)", *sg.DaysRemaining)
		}
		fmt.Fprintf(&b, ", order %s kg\n", sg.SuggestedQuantity)
	}

	if b.Len() == 0 {
		return ""
	}
	return fmt.Sprintf("%s\n%s", farm.Name, strings.TrimRight(b.String(), "\n"))
}
