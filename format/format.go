// Package format renders values compactly for progress and log output.
package format

import (
	"fmt"
	"time"
)

// HumanDuration renders d at a precision that suits its magnitude:
// milliseconds under a second, tenths of a second under a minute, whole
// seconds beyond that.
func HumanDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}
