// errors.go - error taxonomy for a generation run. Every category is
// fatal for the run: the caller restarts from scratch with the same seed to
// reproduce, there is no mid-run recovery.
package pipeline

import "fmt"

// ConfigError reports malformed or missing request inputs. It is returned
// before any model is invoked.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// ShapeError reports disagreeing latent, mask, or source-latent dimensions.
// It is detected before the first denoising step.
type ShapeError struct {
	What string
	Want []int
	Got  []int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: %s is %v, want %v", e.What, e.Got, e.Want)
}

// NumericError reports a non-finite value produced mid-loop. The partial
// latent is discarded; decoding it would produce undefined output.
type NumericError struct {
	Step int
	Err  error
}

func (e *NumericError) Error() string {
	return fmt.Sprintf("numeric instability at step %d: %v", e.Step, e.Err)
}

func (e *NumericError) Unwrap() error { return e.Err }

// AdapterError reports a failed network call. The step index lets the
// caller restart the whole run with the same seed for exact reproduction;
// retrying mid-sequence would desynchronize the schedule.
type AdapterError struct {
	Adapter string
	Step    int
	Err     error
}

func (e *AdapterError) Error() string {
	if e.Step < 0 {
		return fmt.Sprintf("%s adapter: %v", e.Adapter, e.Err)
	}
	return fmt.Sprintf("%s adapter at step %d: %v", e.Adapter, e.Step, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }
