package watcher

import (
	"context"
	"time"

	"github.com/ritzau/circuit-index/pkg/logging"
)

// Debouncer batches rapid change events so that a burst of saves triggers a
// single rebuild. A batch is released after quietPeriod without new events,
// or maxWait after its first event, whichever comes first.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		pending  = make(map[ChangeType][]string)
		count    int
		quiet    = time.NewTimer(d.quietPeriod)
		deadline = time.NewTimer(d.maxWait)
		waiting  bool
	)
	quiet.Stop()
	deadline.Stop()

	flush := func() {
		quiet.Stop()
		deadline.Stop()
		waiting = false
		if count == 0 {
			return
		}

		logging.Debug("flushing accumulated events", "count", count)

		// Removal first so that a later recreate wins
		for _, t := range []ChangeType{ChangeTypeRemoved, ChangeTypeConfig} {
			if paths := pending[t]; len(paths) > 0 {
				d.output <- ChangeEvent{Type: t, Paths: paths, Timestamp: time.Now()}
			}
		}
		clear(pending)
		count = 0
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			pending[event.Type] = append(pending[event.Type], event.Paths...)
			count++

			quiet.Reset(d.quietPeriod)
			if !waiting {
				deadline.Reset(d.maxWait)
				waiting = true
			}

		case <-quiet.C:
			flush()

		case <-deadline.C:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
