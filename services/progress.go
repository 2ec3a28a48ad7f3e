package services

import (
	"io"
	"sync"
)

// ProgressFunc receives the aggregate upload progress as a percentage in [0, 100]
type ProgressFunc func(percent float64)

// progressTracker averages per-file percentages over the files that have
// started transferring. Completed files stay at 100.
type progressTracker struct {
	mu       sync.Mutex
	percents []float64
	started  []bool
	report   ProgressFunc
}

func newProgressTracker(files int, report ProgressFunc) *progressTracker {
	return &progressTracker{
		percents: make([]float64, files),
		started:  make([]bool, files),
		report:   report,
	}
}

// update records file i's progress and reports the new aggregate
func (p *progressTracker) update(i int, written, total int64) {
	percent := 100.0
	if total > 0 {
		percent = float64(written) / float64(total) * 100
	}
	if percent > 100 {
		percent = 100
	}

	p.mu.Lock()
	p.started[i] = true
	if percent > p.percents[i] {
		p.percents[i] = percent
	}
	aggregate := p.aggregateLocked()
	report := p.report
	p.mu.Unlock()

	if report != nil {
		report(aggregate)
	}
}

// Aggregate returns the current mean over started files
func (p *progressTracker) Aggregate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aggregateLocked()
}

func (p *progressTracker) aggregateLocked() float64 {
	var sum float64
	var n int
	for i, started := range p.started {
		if started {
			sum += p.percents[i]
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// progressReader counts bytes read through it and reports them to the tracker
type progressReader struct {
	r       io.Reader
	n       int64
	total   int64
	index   int
	tracker *progressTracker
}

func (c *progressReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.n += int64(n)
		c.tracker.update(c.index, c.n, c.total)
	}
	return n, err
}
