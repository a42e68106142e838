package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

func TestReducer_AccumulatesChannelsSeparately(t *testing.T) {
	r := NewReducer()
	r.Apply(domain.Frame{Kind: domain.FrameThinkingDelta, Payload: "let me "})
	r.Apply(domain.Frame{Kind: domain.FrameContentDelta, Payload: "Hi"})
	r.Apply(domain.Frame{Kind: domain.FrameThinkingDelta, Payload: "think"})
	r.Apply(domain.Frame{Kind: domain.FrameContentDelta, Payload: " there"})
	r.Apply(domain.Frame{Kind: domain.FrameDone})

	assert.Equal(t, "Hi there", r.Content())
	assert.Equal(t, "let me think", r.Thinking())
	assert.True(t, r.Terminal())
	assert.False(t, r.Failed())
	assert.Equal(t, domain.TurnComplete, r.Status())
}

// Replaying the same frame sequence must always yield the same final
// state.
func TestReducer_Deterministic(t *testing.T) {
	frames := []domain.Frame{
		{Kind: domain.FrameThinkingDelta, Payload: "a"},
		{Kind: domain.FrameContentDelta, Payload: "b"},
		{Kind: domain.FrameContentDelta, Payload: "c"},
		{Kind: domain.FrameDone},
	}

	first := NewReducer()
	second := NewReducer()
	for _, f := range frames {
		first.Apply(f)
	}
	for _, f := range frames {
		second.Apply(f)
	}

	assert.Equal(t, first.Content(), second.Content())
	assert.Equal(t, first.Thinking(), second.Thinking())
	assert.Equal(t, first.Status(), second.Status())
}

// Every intermediate snapshot must be a prefix of the next one.
func TestReducer_AppendOnlySnapshots(t *testing.T) {
	frames := []domain.Frame{
		{Kind: domain.FrameContentDelta, Payload: "one "},
		{Kind: domain.FrameThinkingDelta, Payload: "t1"},
		{Kind: domain.FrameContentDelta, Payload: "two "},
		{Kind: domain.FrameThinkingDelta, Payload: "t2"},
		{Kind: domain.FrameContentDelta, Payload: "three"},
	}

	r := NewReducer()
	prevContent, prevThinking := "", ""
	for _, f := range frames {
		r.Apply(f)
		assert.True(t, strings.HasPrefix(r.Content(), prevContent))
		assert.True(t, strings.HasPrefix(r.Thinking(), prevThinking))
		prevContent, prevThinking = r.Content(), r.Thinking()
	}
}

func TestReducer_DuplicateTerminalIgnored(t *testing.T) {
	r := NewReducer()
	r.Apply(domain.Frame{Kind: domain.FrameContentDelta, Payload: "done deal"})
	r.Apply(domain.Frame{Kind: domain.FrameDone})
	r.Apply(domain.Frame{Kind: domain.FrameDone})
	r.Apply(domain.Frame{Kind: domain.FrameContentDelta, Payload: " ignored"})

	assert.Equal(t, "done deal", r.Content())
	assert.Equal(t, domain.TurnComplete, r.Status())
}

func TestReducer_ErrorSupersedesSuccess(t *testing.T) {
	r := NewReducer()
	r.Apply(domain.Frame{Kind: domain.FrameContentDelta, Payload: "partial"})
	r.Apply(domain.Frame{Kind: domain.FrameError, Payload: "upstream gone"})

	assert.True(t, r.Terminal())
	assert.True(t, r.Failed())
	assert.Equal(t, "upstream gone", r.ErrMessage())
	assert.Equal(t, "partial", r.Content())
	assert.Equal(t, domain.TurnErrored, r.Status())
}

func TestReducer_StreamingStatusBeforeTerminal(t *testing.T) {
	r := NewReducer()
	r.Apply(domain.Frame{Kind: domain.FrameContentDelta, Payload: "x"})

	assert.Equal(t, domain.TurnStreaming, r.Status())
}
