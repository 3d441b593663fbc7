// Package alert delivers track alerts to the alerts API off the processing path.
package alert

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"analytics/internal/config"
	"analytics/internal/dto"
	"analytics/internal/logger"
	"analytics/internal/metrics"
	"analytics/internal/model"

	"golang.org/x/sync/errgroup"
)

// Sink delivers one alert. Send must honour ctx.
type Sink interface {
	Name() string
	Send(ctx context.Context, alert dto.Alert) error
}

// Dispatcher queues alerts from worker goroutines and sends them from its own
// loop. Schedule never blocks; a full queue drops the alert.
type Dispatcher struct {
	queue       chan dto.Alert
	primary     Sink
	mirrors     []Sink
	timeout     time.Duration
	concurrency int
	source      string
	now         func() time.Time
	logger      *logger.Logger

	scheduled atomic.Uint64
	sent      atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewDispatcher(config *config.Config, primary Sink, logger *logger.Logger, mirrors ...Sink) *Dispatcher {
	queue := config.AlertQueue
	if queue < 1 {
		queue = 1
	}
	concurrency := config.AlertConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeout := config.AlertTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Dispatcher{
		queue:       make(chan dto.Alert, queue),
		primary:     primary,
		mirrors:     mirrors,
		timeout:     timeout,
		concurrency: concurrency,
		source:      config.SourceInfo,
		now:         time.Now,
		logger:      logger,
	}
}

// Schedule builds the alert for a freshly updated track and queues it.
// It reports whether the alert was queued.
func (d *Dispatcher) Schedule(track model.Track, frameWidth, frameHeight int) bool {
	alert := dto.Alert{
		Timestamp:      float64(d.now().UnixNano()) / 1e9,
		TrackID:        strconv.Itoa(track.ID),
		BBoxNormalized: track.Box.Normalize(frameWidth, frameHeight),
		Confidence:     track.Confidence,
		ClassID:        track.ClassID,
		SourceInfo:     d.source,
	}

	select {
	case d.queue <- alert:
		d.scheduled.Add(1)
		metrics.AlertsTotal.WithLabelValues("scheduled").Inc()
		return true
	default:
		d.dropped.Add(1)
		metrics.AlertsTotal.WithLabelValues("dropped").Inc()
		return false
	}
}

// Run sends queued alerts until ctx is cancelled, then waits for sends in
// progress. At most concurrency sends run at once.
func (d *Dispatcher) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(d.concurrency)

	d.logger.Info("📣 Alert dispatcher started (sink %s, %d mirror(s))", d.primary.Name(), len(d.mirrors))
	for {
		select {
		case <-ctx.Done():
			g.Wait()
			d.logger.Info("Alert dispatcher stopped, %d queued alert(s) discarded", len(d.queue))
			return nil
		case alert := <-d.queue:
			g.Go(func() error {
				d.deliver(ctx, alert)
				return nil
			})
		}
	}
}

// deliver sends one alert once. Failures are logged; there is no retry.
func (d *Dispatcher) deliver(ctx context.Context, alert dto.Alert) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	start := time.Now()
	err := d.primary.Send(sendCtx, alert)
	metrics.AlertSendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		d.failed.Add(1)
		metrics.AlertsTotal.WithLabelValues("failed").Inc()
		d.logger.Error("Failed to send alert for track %s via %s: %v", alert.TrackID, d.primary.Name(), err)
	} else {
		d.sent.Add(1)
		metrics.AlertsTotal.WithLabelValues("sent").Inc()
		d.logger.Debug("Alert for track %s sent via %s", alert.TrackID, d.primary.Name())
	}

	for _, mirror := range d.mirrors {
		if err := mirror.Send(sendCtx, alert); err != nil {
			d.logger.WarningEvery("mirror-"+mirror.Name(), 30*time.Second, "Failed to mirror alert via %s: %v", mirror.Name(), err)
		}
	}
}

// Counters returns the delivery counters.
func (d *Dispatcher) Counters() dto.AlertCounters {
	return dto.AlertCounters{
		Scheduled: d.scheduled.Load(),
		Sent:      d.sent.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}
