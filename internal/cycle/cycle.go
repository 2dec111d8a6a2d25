// Package cycle runs the polling loop: fetch availability, match
// subscribers, dispatch notifications.
package cycle

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/baraks/slotwatch/internal/domain"
	"github.com/baraks/slotwatch/internal/notify"
	"github.com/baraks/slotwatch/internal/pkg/ctxlog"
	"github.com/baraks/slotwatch/internal/subscription"
	"github.com/google/uuid"
)

// ErrCycleInProgress is returned when a cycle is requested while the
// previous one is still running.
var ErrCycleInProgress = errors.New("polling cycle already in progress")

// AvailabilityFetcher produces one availability snapshot.
type AvailabilityFetcher interface {
	FetchAll(ctx context.Context, asOf time.Time) domain.AvailabilityBatch
}

// Dispatcher fans a snapshot out to subscribers.
type Dispatcher interface {
	Dispatch(ctx context.Context, batch domain.AvailabilityBatch, subscribers []domain.Subscriber) notify.DispatchReport
}

// Runner executes polling cycles. At most one cycle runs at a time: a tick
// or manual trigger arriving mid-cycle is skipped, never queued.
type Runner struct {
	fetcher     AvailabilityFetcher
	repo        subscription.Repository
	dispatcher  Dispatcher
	sink        notify.Sink
	renderer    *notify.Renderer
	adminChatID int64

	busy atomic.Bool

	lastReport atomic.Pointer[CycleStatus]
}

// CycleStatus is the outcome of the most recent cycle, exposed on the ops
// API.
type CycleStatus struct {
	CycleID    string                `json:"cycle_id"`
	StartedAt  time.Time             `json:"started_at"`
	Duration   time.Duration         `json:"duration"`
	Err        string                `json:"error,omitempty"`
	Report     notify.DispatchReport `json:"report"`
	BatchDates int                   `json:"batch_dates"`
}

// NewRunner creates a cycle runner.
func NewRunner(
	fetcher AvailabilityFetcher,
	repo subscription.Repository,
	dispatcher Dispatcher,
	sink notify.Sink,
	renderer *notify.Renderer,
	adminChatID int64,
) *Runner {
	return &Runner{
		fetcher:     fetcher,
		repo:        repo,
		dispatcher:  dispatcher,
		sink:        sink,
		renderer:    renderer,
		adminChatID: adminChatID,
	}
}

// RunCycle executes one polling cycle. Returns ErrCycleInProgress when the
// previous cycle has not finished; per-service fetch failures and sink
// failures are absorbed into the report and never surface as an error here.
func (r *Runner) RunCycle(ctx context.Context) (notify.DispatchReport, error) {
	if !r.busy.CompareAndSwap(false, true) {
		ctxlog.FromContext(ctx).Warn("skipping cycle, previous one still running")
		recordCycle("skipped")
		return notify.DispatchReport{}, ErrCycleInProgress
	}
	defer r.busy.Store(false)

	cycleID := uuid.NewString()
	ctx = ctxlog.With(ctx, "cycle_id", cycleID)
	log := ctxlog.FromContext(ctx)

	start := time.Now()
	log.Info("polling cycle started")

	report, batchDates, err := r.run(ctx)

	status := &CycleStatus{
		CycleID:    cycleID,
		StartedAt:  start,
		Duration:   time.Since(start),
		Report:     report,
		BatchDates: batchDates,
	}
	if err != nil {
		status.Err = err.Error()
		recordCycle("failure")
	} else {
		recordCycle("success")
	}
	observeCycleDuration(time.Since(start))
	r.lastReport.Store(status)

	log.Info("polling cycle finished",
		"duration", status.Duration,
		"considered", report.Considered,
		"notified", report.Notified,
		"sink_failures", report.SinkFailures,
		"error", err,
	)

	return report, err
}

func (r *Runner) run(ctx context.Context) (notify.DispatchReport, int, error) {
	log := ctxlog.FromContext(ctx)

	batch := r.fetcher.FetchAll(ctx, time.Now().UTC())

	dates := 0
	for _, d := range batch {
		dates += len(d)
	}

	// Nothing open anywhere: skip the subscriber read entirely.
	if !batch.HasDates() {
		log.Info("no open dates this cycle")
		return notify.DispatchReport{}, 0, nil
	}

	subscribers, err := r.repo.ListActive(ctx)
	if err != nil {
		log.Error("failed to list subscribers", "error", err)
		r.alertAdmin(ctx, "failed to list subscribers during cycle", err)
		return notify.DispatchReport{}, dates, err
	}

	report := r.dispatcher.Dispatch(ctx, batch, subscribers)
	return report, dates, nil
}

// LastStatus returns the most recent cycle outcome, nil before the first
// cycle completes.
func (r *Runner) LastStatus() *CycleStatus {
	return r.lastReport.Load()
}

func (r *Runner) alertAdmin(ctx context.Context, reason string, cause error) {
	if r.adminChatID == 0 || !errors.Is(cause, subscription.ErrRepository) {
		return
	}

	log := ctxlog.FromContext(ctx)
	alert, err := r.renderer.RenderAdminAlert(reason, 0, cause)
	if err != nil {
		log.Error("failed to render admin alert", "error", err)
		return
	}
	if err := r.sink.Send(ctx, r.adminChatID, alert); err != nil {
		log.Error("failed to send admin alert", "error", err)
	}
}
