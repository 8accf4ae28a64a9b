package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/corbin-r/net-pipe/internal/logging"
	"github.com/corbin-r/net-pipe/internal/model"
)

// Dispatcher fans out alert events to matching webhook configurations.
// It is a model.Observer, so it can sit next to the audit log and metrics.
type Dispatcher struct {
	configs    []Config
	configHash string
	logger     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations.
// Returns nil if configs is empty (callers should nil-check).
func NewDispatcher(configs []Config, configHash string) *Dispatcher {
	if len(configs) == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		configs:    configs,
		configHash: configHash,
		logger:     logging.For("alert"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Observe converts a channel event and dispatches it.
func (d *Dispatcher) Observe(e model.Event) {
	d.Dispatch(Event{
		Timestamp:  e.At.UTC().Format(time.RFC3339Nano),
		Channel:    e.Channel,
		Kind:       string(e.Kind),
		Op:         e.Op,
		ErrorKind:  e.ErrorKind,
		Error:      e.Error,
		PacketID:   e.PacketID,
		Driver:     e.Driver,
		State:      e.State,
		Outflow:    e.Outflow,
		MaxOutflow: e.MaxOutflow,
		ConfigHash: d.configHash,
	})
}

// Dispatch sends the event to all webhooks whose Events list matches
// event.Kind or event.ErrorKind. Delivery runs in the background. After
// Shutdown, events are dropped.
func (d *Dispatcher) Dispatch(event Event) {
	if d.ctx.Err() != nil {
		return
	}
	for _, cfg := range d.configs {
		if !matches(cfg.Events, event) {
			continue
		}
		d.wg.Add(1)
		go func(cfg Config) {
			defer d.wg.Done()
			if err := Send(d.ctx, cfg, event); err != nil {
				d.logger.Warn().Str("url", cfg.URL).Str("kind", event.Kind).Err(err).Msg("alert not delivered")
			}
		}(cfg)
	}
}

// Wait blocks until every in-flight delivery has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Shutdown waits for in-flight deliveries until ctx is done, then cancels
// whatever is still retrying and returns ctx's error.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func matches(events []string, event Event) bool {
	for _, e := range events {
		if e == event.Kind {
			return true
		}
		if event.ErrorKind != "" && e == event.ErrorKind {
			return true
		}
	}
	return false
}
