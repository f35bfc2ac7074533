package progress

import (
	"strings"
	"time"
)

// Spinner is the waiting indicator shown before step progress is known.
type Spinner struct {
	message string
	parts   []string
	value   int

	ticker  *time.Ticker
	stopped time.Time
}

func NewSpinner(message string) *Spinner {
	s := &Spinner{
		message: message,
		parts: []string{
			"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏",
		},
	}
	go s.start()
	return s
}

func (s *Spinner) String() string {
	var sb strings.Builder
	if s.message != "" {
		sb.WriteString(strings.TrimSpace(s.message))
		sb.WriteString(" ")
	}

	if s.stopped.IsZero() {
		sb.WriteString(s.parts[s.value])
		sb.WriteString(" ")
	}

	return sb.String()
}

func (s *Spinner) start() {
	s.ticker = time.NewTicker(100 * time.Millisecond)
	for range s.ticker.C {
		s.value = (s.value + 1) % len(s.parts)
		if !s.stopped.IsZero() {
			return
		}
	}
}

func (s *Spinner) Stop() {
	if s.stopped.IsZero() {
		s.stopped = time.Now()
	}
}
