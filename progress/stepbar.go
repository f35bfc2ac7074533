package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/stablegen/stablegen/format"
)

const stepBarWidth = 30

// StepBar displays denoising-step progress with elapsed time.
type StepBar struct {
	message string
	current int
	total   int
	started time.Time
}

func NewStepBar(message string, total int) *StepBar {
	return &StepBar{message: message, total: total, started: time.Now()}
}

func (s *StepBar) Set(current int) {
	s.current = current
}

func (s *StepBar) String() string {
	percent := float64(s.current) / float64(s.total)
	filled := int(percent * stepBarWidth)

	// "Generating  40% ▕████        ▏ 12/30 4.1s"
	return fmt.Sprintf("%s %3.0f%% ▕%s%s▏ %d/%d %s",
		s.message, percent*100,
		strings.Repeat("█", filled), strings.Repeat(" ", stepBarWidth-filled),
		s.current, s.total,
		format.HumanDuration(time.Since(s.started)))
}
