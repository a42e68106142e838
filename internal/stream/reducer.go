package stream

import (
	"strings"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

// Reducer folds the frame sequence of one turn into accumulated content and
// thinking buffers. The fold is deterministic: replaying the same frames
// always yields the same final state. Both buffers grow append-only until a
// terminal frame arrives; frames after termination are ignored.
type Reducer struct {
	content  strings.Builder
	thinking strings.Builder
	terminal bool
	failed   bool
	errMsg   string
}

// NewReducer creates an empty reducer.
func NewReducer() *Reducer {
	return &Reducer{}
}

// Apply folds one frame into the accumulator state.
func (r *Reducer) Apply(frame domain.Frame) {
	if r.terminal {
		return
	}

	switch frame.Kind {
	case domain.FrameContentDelta:
		r.content.WriteString(frame.Payload)
	case domain.FrameThinkingDelta:
		r.thinking.WriteString(frame.Payload)
	case domain.FrameDone:
		r.terminal = true
	case domain.FrameError:
		r.terminal = true
		r.failed = true
		r.errMsg = frame.Payload
	}
}

// Content returns the accumulated visible text.
func (r *Reducer) Content() string {
	return r.content.String()
}

// Thinking returns the accumulated reasoning text.
func (r *Reducer) Thinking() string {
	return r.thinking.String()
}

// Terminal reports whether a done or error frame has been seen.
func (r *Reducer) Terminal() bool {
	return r.terminal
}

// Failed reports whether the stream ended with an error frame.
func (r *Reducer) Failed() bool {
	return r.failed
}

// ErrMessage returns the error frame payload, empty unless Failed.
func (r *Reducer) ErrMessage() string {
	return r.errMsg
}

// Status maps the accumulator state onto a turn status.
func (r *Reducer) Status() domain.TurnStatus {
	switch {
	case !r.terminal:
		return domain.TurnStreaming
	case r.failed:
		return domain.TurnErrored
	default:
		return domain.TurnComplete
	}
}
