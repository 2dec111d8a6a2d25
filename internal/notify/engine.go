package notify

import (
	"context"
	"sync"
	"time"

	"github.com/baraks/slotwatch/internal/catalog"
	"github.com/baraks/slotwatch/internal/domain"
	"github.com/baraks/slotwatch/internal/pkg/ctxlog"
)

const defaultNumWorkers = 5

// DispatchReport summarizes one dispatch pass.
type DispatchReport struct {
	// Considered is the number of subscribers examined.
	Considered int
	// Notified is the number of subscribers that were sent a message.
	Notified int
	// SinkFailures is the number of sends that errored.
	SinkFailures int
}

// Engine matches an availability batch against subscribers and sends at
// most one message per subscriber per pass, covering every matching
// offering in a single rendered message.
type Engine struct {
	catalog    *catalog.Catalog
	renderer   *Renderer
	sink       Sink
	numWorkers int
}

// NewEngine creates a dispatch engine.
func NewEngine(cat *catalog.Catalog, renderer *Renderer, sink Sink, numWorkers int) *Engine {
	if numWorkers <= 0 {
		numWorkers = defaultNumWorkers
	}
	return &Engine{
		catalog:    cat,
		renderer:   renderer,
		sink:       sink,
		numWorkers: numWorkers,
	}
}

// Dispatch fans the batch out to every matching subscriber. A batch with no
// open dates returns a zero report without touching the sink. Send failures
// are counted and logged per subscriber; they never abort the pass.
func (e *Engine) Dispatch(ctx context.Context, batch domain.AvailabilityBatch, subscribers []domain.Subscriber) DispatchReport {
	log := ctxlog.FromContext(ctx)

	var report DispatchReport
	if !batch.HasDates() {
		return report
	}

	start := time.Now()
	defer func() { observeDispatchDuration(time.Since(start)) }()

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.numWorkers)

	for _, sub := range subscribers {
		report.Considered++

		services := e.matchServices(batch, sub)
		if len(services) == 0 {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(sub domain.Subscriber, services []ServiceDates) {
			defer wg.Done()
			defer func() { <-sem }()

			text, err := e.renderer.RenderAvailability(services)
			if err != nil {
				log.Error("failed to render availability message", "chat_id", sub.ChatID, "error", err)
				mu.Lock()
				report.SinkFailures++
				mu.Unlock()
				recordNotificationSent("failed")
				return
			}

			if err := e.sink.Send(ctx, sub.ChatID, text); err != nil {
				log.Error("failed to send availability message", "chat_id", sub.ChatID, "error", err)
				mu.Lock()
				report.SinkFailures++
				mu.Unlock()
				recordNotificationSent("failed")
				return
			}

			mu.Lock()
			report.Notified++
			mu.Unlock()
			recordNotificationSent("success")
		}(sub, services)
	}

	wg.Wait()
	return report
}

// matchServices intersects the batch with the subscriber's service set and
// returns renderable blocks in catalog order. At most one block per
// offering, so a subscriber never gets duplicate entries in one message.
func (e *Engine) matchServices(batch domain.AvailabilityBatch, sub domain.Subscriber) []ServiceDates {
	var out []ServiceDates
	for _, serviceID := range e.catalog.OrderedIDs() {
		dates := batch[serviceID]
		if len(dates) == 0 || !sub.SubscribedTo(serviceID) {
			continue
		}
		name, _ := e.catalog.DisplayName(serviceID)
		out = append(out, ServiceDates{DisplayName: name, Dates: dates})
	}
	return out
}
