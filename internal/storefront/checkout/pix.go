package checkout

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/personaliza/api/internal/domain"
)

// PixPollInterval is the fixed delay between PIX status checks. There is no backoff.
const PixPollInterval = 3 * time.Second

// StatusSource reads the current status of an order.
type StatusSource interface {
	OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error)
}

// PixPoller polls an order until its status leaves Pending/Cancelled. It runs until the status
// changes, Stop is called or the parent context is cancelled.
type PixPoller struct {
	source   StatusSource
	orderID  string
	interval time.Duration
	logger   *zap.Logger

	cancel    context.CancelFunc
	confirmed chan domain.OrderStatus
	done      chan struct{}
	stopOnce  sync.Once
}

// PollerOption customises a PixPoller.
type PollerOption func(*PixPoller)

// WithPollerInterval overrides PixPollInterval.
func WithPollerInterval(interval time.Duration) PollerOption {
	return func(p *PixPoller) {
		if interval > 0 {
			p.interval = interval
		}
	}
}

// WithPollerLogger sets the logger for poll failures.
func WithPollerLogger(logger *zap.Logger) PollerOption {
	return func(p *PixPoller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// StartPixPoller begins polling orderID in a background goroutine.
func StartPixPoller(ctx context.Context, source StatusSource, orderID string, opts ...PollerOption) *PixPoller {
	ctx, cancel := context.WithCancel(ctx)
	p := &PixPoller{
		source:    source,
		orderID:   orderID,
		interval:  PixPollInterval,
		logger:    zap.NewNop(),
		cancel:    cancel,
		confirmed: make(chan domain.OrderStatus, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	go p.run(ctx)
	return p
}

// Confirmed receives the first status outside Pending/Cancelled, then closes. It closes without
// a value when the poller is stopped first.
func (p *PixPoller) Confirmed() <-chan domain.OrderStatus {
	return p.confirmed
}

// Done is closed once the polling goroutine has exited.
func (p *PixPoller) Done() <-chan struct{} {
	return p.done
}

// Stop cancels polling and waits for the goroutine to exit. Safe to call more than once.
func (p *PixPoller) Stop() {
	p.stopOnce.Do(p.cancel)
	<-p.done
}

func (p *PixPoller) run(ctx context.Context) {
	defer close(p.done)
	defer close(p.confirmed)
	defer p.cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := p.source.OrderStatus(ctx, p.orderID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Debug("checkout: pix status poll failed", zap.String("orderId", p.orderID), zap.Error(err))
			continue
		}
		if waitingForPix(status) {
			continue
		}
		p.logger.Info("checkout: pix payment settled", zap.String("orderId", p.orderID), zap.String("status", string(status)))
		p.confirmed <- status
		return
	}
}

func waitingForPix(status domain.OrderStatus) bool {
	return status == domain.OrderStatusPending || status == domain.OrderStatusCancelled
}
