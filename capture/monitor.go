package capture

import (
	"context"
	"sync"
)

// Monitor owns the orientation subscription of one capture screen.
// Only one subscription is live at a time; subscribing for a new step
// invalidates the previous one so samples are never judged against a stale step.
type Monitor struct {
	mu     sync.Mutex
	th     Thresholds
	gen    uint64
	step   Step
	live   bool
	last   AlignmentResult
	closed bool
}

// Subscription is a step-scoped handle on the sensor stream
type Subscription struct {
	m    *Monitor
	gen  uint64
	step Step
}

// NewMonitor creates a monitor with no live subscription
func NewMonitor(th Thresholds) *Monitor {
	return &Monitor{th: th}
}

// Subscribe binds a new subscription to the step and tears down any older one
func (m *Monitor) Subscribe(step Step) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrMonitorClosed
	}

	m.gen++
	m.step = step
	m.live = true
	m.last = AlignmentResult{}

	return &Subscription{m: m, gen: m.gen, step: step}, nil
}

// Aligned reports the latest verdict for the live subscription
func (m *Monitor) Aligned() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.live && m.last.Aligned
}

// Last returns the latest alignment result for the live subscription
func (m *Monitor) Last() AlignmentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.live {
		return AlignmentResult{}
	}
	return m.last
}

// Close tears down the live subscription permanently
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.live = false
	m.gen++
	m.last = AlignmentResult{}
}

// Step returns the step this subscription evaluates against
func (s *Subscription) Step() Step {
	return s.step
}

// Observe evaluates a sample against the subscribed step
func (s *Subscription) Observe(sample Sample) (AlignmentResult, error) {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return AlignmentResult{}, ErrMonitorClosed
	}
	if s.gen != m.gen {
		return AlignmentResult{}, ErrStaleSubscription
	}

	result := Evaluate(sample, s.step, m.th)
	m.last = result
	return result, nil
}

// Close unsubscribes. Closing a subscription that is already stale is a no-op.
func (s *Subscription) Close() {
	m := s.m
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.gen != m.gen {
		return
	}
	m.gen++
	m.live = false
	m.last = AlignmentResult{}
}

// Watch evaluates a continuous sample stream until the context ends, the stream
// closes, or the subscription goes stale. The returned channel is closed on exit.
func (s *Subscription) Watch(ctx context.Context, samples <-chan Sample) <-chan AlignmentResult {
	out := make(chan AlignmentResult)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case sample, ok := <-samples:
				if !ok {
					return
				}
				result, err := s.Observe(sample)
				if err != nil {
					return
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}
