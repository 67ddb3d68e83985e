package cli

import (
	"fmt"
	"os"
	"sync"
)

type mediaCount struct {
	saved int
	total int
}

type progressManager struct {
	mu      sync.Mutex
	counts  map[string]mediaCount
	enabled bool
}

var defaultProgressManager = &progressManager{
	counts:  make(map[string]mediaCount, 16),
	enabled: isTerminal(os.Stdout),
}

// MediaProgress tracks how many assets of one message have landed on disk.
// Output is suppressed when stdout is not a terminal.
type MediaProgress struct {
	label string
}

// NewMediaProgress creates a progress tracker labeled for one message,
// typically "<artist> <message id>".
func NewMediaProgress(label string) *MediaProgress {
	return &MediaProgress{label: label}
}

// Update records the current saved/total asset counts.
//
// If total is not known yet, it leaves the state unchanged.
func (p *MediaProgress) Update(saved, total int) {
	if total <= 0 {
		return
	}
	defaultProgressManager.update(p.label, saved, total)
}

// Stop finalizes the tracker and prints the last counts on one line.
func (p *MediaProgress) Stop() {
	defaultProgressManager.stop(p.label)
}

func (m *progressManager) update(label string, saved, total int) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[label] = mediaCount{saved: saved, total: total}
}

func (m *progressManager) stop(label string) {
	if !m.enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	count, ok := m.counts[label]
	if !ok {
		return
	}
	delete(m.counts, label)
	if count.total <= 0 {
		return
	}
	fmt.Fprintf(os.Stdout, "%s: %d/%d\n", label, count.saved, count.total)
}

func isTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
