package texture

import "sync"

// progress folds per-face fetch progress into one value in [0, 1].
// Reported values never go backwards.
type progress struct {
	mu       sync.Mutex
	parts    []float64
	reported float64
	notify   func(float64)
}

func newProgress(n int, notify func(float64)) *progress {
	return &progress{parts: make([]float64, n), notify: notify}
}

func (p *progress) set(i int, v float64) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if v <= p.parts[i] {
		return
	}
	p.parts[i] = v

	var sum float64
	for _, part := range p.parts {
		sum += part
	}
	combined := sum / float64(len(p.parts))
	if combined <= p.reported {
		return
	}
	p.reported = combined
	if p.notify != nil {
		p.notify(combined)
	}
}
