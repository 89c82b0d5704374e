// Package dispatcher fans a triggered alert out to its notification channels.
// It uses the strategy pattern to route each channel to its sender; channels
// are delivered concurrently and independently of each other.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/finsightx/alert-engine/internal/dispatcher/retry"
	"github.com/finsightx/alert-engine/internal/dispatcher/strategy"
	"github.com/finsightx/alert-engine/internal/domain"
	"github.com/finsightx/alert-engine/internal/metrics"
)

// DefaultChannelTimeout bounds one channel's delivery, retries included.
// Recipients of a channel are sent to concurrently within it.
const DefaultChannelTimeout = 5 * time.Second

var (
	errNoRecipients = errors.New("no recipients")
	errNoSender     = errors.New("no sender registered")
)

// Config controls delivery timing.
type Config struct {
	ChannelTimeout time.Duration
	Retry          retry.Config
}

// DefaultConfig returns the standard delivery settings.
func DefaultConfig() Config {
	return Config{
		ChannelTimeout: DefaultChannelTimeout,
		Retry:          retry.DefaultConfig(),
	}
}

// ChannelResult is the delivery outcome for one channel. Delivered is true
// when at least one recipient accepted the alert; Error carries any
// recipient failures.
type ChannelResult struct {
	Delivered bool
	Attempts  int
	Error     error
}

// DispatchResult maps each requested channel to its outcome.
type DispatchResult map[domain.Channel]ChannelResult

// Failed returns the channels that reported an error, sorted.
func (r DispatchResult) Failed() []domain.Channel {
	var out []domain.Channel
	for ch, res := range r {
		if res.Error != nil {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Dispatcher coordinates notification delivery across channels.
type Dispatcher struct {
	registry *strategy.Registry
	cfg      Config
}

// New creates a dispatcher over a sender registry.
func New(registry *strategy.Registry, cfg Config) *Dispatcher {
	if cfg.ChannelTimeout <= 0 {
		cfg.ChannelTimeout = DefaultChannelTimeout
	}
	return &Dispatcher{registry: registry, cfg: cfg}
}

// Dispatch delivers the notification on every channel and waits for all of
// them. It never fails as a whole; per-channel errors are in the result.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification, channels []domain.Channel, recipients map[domain.Channel][]string) DispatchResult {
	result := make(DispatchResult, len(channels))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	seen := make(map[domain.Channel]bool, len(channels))
	for _, ch := range channels {
		if seen[ch] {
			continue
		}
		seen[ch] = true

		wg.Add(1)
		go func(ch domain.Channel) {
			defer wg.Done()
			res := d.dispatchChannel(ctx, n, ch, recipients[ch])
			mu.Lock()
			result[ch] = res
			mu.Unlock()
		}(ch)
	}
	wg.Wait()

	if failed := result.Failed(); len(failed) > 0 {
		slog.Warn("Some channels failed",
			"alert_id", n.AlertID,
			"failed", failed,
			"channels", len(result),
		)
	}
	return result
}

func (d *Dispatcher) dispatchChannel(ctx context.Context, n *domain.Notification, ch domain.Channel, recipients []string) (res ChannelResult) {
	start := time.Now()
	defer func() {
		status := "delivered"
		if !res.Delivered {
			status = "failed"
		}
		metrics.DispatchTotal.WithLabelValues(string(ch), status).Inc()
		metrics.DispatchDuration.WithLabelValues(string(ch)).Observe(time.Since(start).Seconds())
	}()

	sender, ok := d.registry.Get(ch)
	if !ok {
		return ChannelResult{Error: &domain.DispatchChannelError{Channel: ch, Err: errNoSender}}
	}

	if !ch.RequiresEndpoint() && len(recipients) == 0 {
		recipients = []string{n.OrganizationID}
	}
	if len(recipients) == 0 {
		return ChannelResult{Error: &domain.DispatchChannelError{Channel: ch, Err: errNoRecipients}}
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.ChannelTimeout)
	defer cancel()

	// First pass: every recipient concurrently, so a slow one cannot use up
	// the channel deadline of the others.
	errs := make([]error, len(recipients))
	var wg sync.WaitGroup
	for i, recipient := range recipients {
		wg.Add(1)
		go func(i int, recipient string) {
			defer wg.Done()
			errs[i] = d.send(ctx, sender, ch, recipient, n)
		}(i, recipient)
	}
	wg.Wait()
	res.Attempts = len(recipients)

	// Retry pass: the channel shares one budget across its recipients.
	budget := retry.NewBudget(d.cfg.Retry)
	operation := fmt.Sprintf("send_%s_%s", ch, n.AlertID)
	for i, err := range errs {
		if err == nil || budget.Remaining() <= 0 {
			continue
		}
		recipient := recipients[i]
		ran, retryErr := budget.Retry(ctx, operation, err, func() error {
			return d.send(ctx, sender, ch, recipient, n)
		})
		if ran {
			res.Attempts++
		}
		errs[i] = retryErr
	}

	var failed []error
	for _, err := range errs {
		if err != nil {
			failed = append(failed, err)
			continue
		}
		res.Delivered = true
	}

	if len(failed) > 0 {
		res.Error = &domain.DispatchChannelError{Channel: ch, Err: errors.Join(failed...)}
		slog.Error("Channel delivery failed",
			"channel", ch,
			"alert_id", n.AlertID,
			"failed_recipients", len(failed),
			"recipients", len(recipients),
			"error", res.Error,
		)
	}
	return res
}

// send delivers to one recipient, turning a sender panic into an error.
func (d *Dispatcher) send(ctx context.Context, sender strategy.NotificationSender, ch domain.Channel, recipient string, n *domain.Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("dispatcher").Inc()
			slog.Error("Recovered from panic in channel sender",
				"channel", ch,
				"alert_id", n.AlertID,
				"panic", r,
			)
			err = fmt.Errorf("sender panic: %v", r)
		}
	}()
	return sender.Send(ctx, recipient, n)
}
