package actgate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sigil-dev/actgate/service/gateway"
	"github.com/sigil-dev/actgate/service/ledger"
	"github.com/sigil-dev/actgate/service/notify"
)

// Runtime owns the background loops: the execution gateway poller and the
// overdue-approval scanner.
type Runtime struct {
	ledger          *ledger.Service
	gateway         *gateway.Service
	notifier        *notify.Service
	overdueInterval time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// Start launches the gateway polling loop and the overdue scanner. It
// returns once both are running; use Shutdown or cancel ctx to stop them.
func (r *Runtime) Start(ctx context.Context) {
	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		if err := r.gateway.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("actgate: gateway stopped: %v", err)
		}
	}()
	go func() {
		defer r.wg.Done()
		r.scanOverdue(ctx)
	}()
}

func (r *Runtime) scanOverdue(ctx context.Context) {
	ticker := time.NewTicker(r.overdueInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdownCh:
			return
		case <-ticker.C:
			if _, err := r.ledger.ScanOverdue(ctx); err != nil {
				log.Printf("actgate: overdue scan error: %v", err)
			}
		}
	}
}

// Shutdown stops the background loops and waits for them to finish.
func (r *Runtime) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.gateway.Shutdown()
		close(r.shutdownCh)
	})
	r.wg.Wait()
}

// Gateway returns the execution gateway.
func (r *Runtime) Gateway() *gateway.Service {
	return r.gateway
}
