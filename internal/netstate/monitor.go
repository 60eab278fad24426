// Package netstate tracks whether the DEX API is reachable.
package netstate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/bnbchain-kit/internal/log"
)

// ErrNotReachable is the sync failure reported while the API is down.
var ErrNotReachable = errors.New("api not reachable")

// DefaultInterval is the probe period when none is configured.
const DefaultInterval = 30 * time.Second

// Prober answers a cheap request against the API.
type Prober interface {
	Time(ctx context.Context) (time.Time, error)
}

// Monitor probes the API periodically and broadcasts reachability changes.
type Monitor struct {
	prober   Prober
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	mu        sync.RWMutex
	reachable bool
	subs      []chan bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates a monitor. The API is assumed reachable until the
// first probe says otherwise.
func NewMonitor(p Prober, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		prober:    p,
		interval:  interval,
		timeout:   interval,
		log:       log.NetState,
		reachable: true,
	}
}

// Start runs one probe synchronously and then probes every interval until
// Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.Probe(m.ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run()
	}()
}

// Stop ends the probe loop and closes all subscriptions.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()

	m.mu.Lock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
	m.mu.Unlock()
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.Probe(m.ctx)
		}
	}
}

// Reachable reports the result of the last probe.
func (m *Monitor) Reachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reachable
}

// Subscribe returns a channel receiving the new state on every change.
// Slow receivers miss intermediate changes.
func (m *Monitor) Subscribe() <-chan bool {
	ch := make(chan bool, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Probe queries the API once and updates the state. It returns the new
// state.
func (m *Monitor) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	_, err := m.prober.Time(pctx)
	cancel()
	if err != nil && ctx.Err() != nil {
		return m.Reachable()
	}
	m.set(err == nil, err)
	return err == nil
}

func (m *Monitor) set(reachable bool, cause error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reachable == reachable {
		return
	}
	m.reachable = reachable
	if reachable {
		m.log.Info().Msg("API reachable")
	} else {
		m.log.Warn().Err(cause).Msg("API not reachable")
	}
	for _, ch := range m.subs {
		select {
		case ch <- reachable:
		default:
		}
	}
}
