package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDuration = errors.New("invalid duration")
	ErrToolMissing     = errors.New("not found")
	ErrEmptyCapture    = errors.New("audio file is empty or too small. Check microphone connection")
	ErrBusy            = errors.New("recorder busy")
)

// RecorderError reports a recorder that ran but exited unsuccessfully.
type RecorderError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *RecorderError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s failed: %s", e.Tool, msg)
}

func (e *RecorderError) Unwrap() error { return e.Err }
