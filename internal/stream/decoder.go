// Package stream implements the wire protocol of the inference endpoint:
// decoding server-sent event records into frames and folding frames into
// accumulated turn content.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

// doneSentinel is the terminal marker record sent after the final event.
var doneSentinel = []byte("[DONE]")

// Decoder parses a raw SSE byte stream into frames. Records are delimited
// by "data: <payload>" lines terminated with a blank line; a partial line is
// buffered across chunk boundaries, so frames come out identically however
// the transport splits the bytes. Malformed records are dropped without
// aborting the stream.
//
// A Decoder is single-use and not safe for concurrent use.
type Decoder struct {
	reader  *bufio.Reader
	pending []domain.Frame
	eof     bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{reader: bufio.NewReader(r)}
}

// Next returns the next frame, blocking only on the underlying read.
// It returns io.EOF once the stream is exhausted.
func (d *Decoder) Next() (domain.Frame, error) {
	for {
		if len(d.pending) > 0 {
			frame := d.pending[0]
			d.pending = d.pending[1:]
			return frame, nil
		}
		if d.eof {
			return domain.Frame{}, io.EOF
		}

		data, err := d.readRecord()
		if err != nil {
			if err == io.EOF && len(data) > 0 {
				d.eof = true
				d.pending = decodeRecord(data)
				continue
			}
			return domain.Frame{}, err
		}
		d.pending = decodeRecord(data)
	}
}

// readRecord reads lines until a complete blank-line-terminated record is
// seen, joining multiple data lines per the SSE convention.
func (d *Decoder) readRecord() ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := d.reader.ReadBytes('\n')
		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 && err == nil {
			// Blank line ends the record.
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if rest, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			dataLines = append(dataLines, bytes.TrimSpace(rest))
		}
		// Other SSE fields (event:, id:, retry:, comments) are ignored.

		if err == io.EOF {
			return bytes.Join(dataLines, []byte("\n")), io.EOF
		}
		if err != nil {
			// Mid-stream transport failure. The error text matters to the
			// caller, so it is not collapsed into EOF.
			return nil, err
		}
	}
}

// decodeRecord turns one complete record into zero or more frames. A record
// carrying several fields yields its frames in content, thinking, done
// order so downstream consumption stays strictly sequential.
func decodeRecord(data []byte) []domain.Frame {
	if len(data) == 0 {
		return nil
	}
	if bytes.Equal(data, doneSentinel) {
		return []domain.Frame{{Kind: domain.FrameDone}}
	}

	var event domain.StreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		// Malformed record, drop it.
		return nil
	}

	if event.Error != "" {
		return []domain.Frame{{Kind: domain.FrameError, Payload: event.Error}}
	}

	var frames []domain.Frame
	if event.Content != "" {
		frames = append(frames, domain.Frame{Kind: domain.FrameContentDelta, Payload: event.Content})
	}
	if event.Thinking != "" {
		frames = append(frames, domain.Frame{Kind: domain.FrameThinkingDelta, Payload: event.Thinking})
	}
	if event.Done {
		frames = append(frames, domain.Frame{Kind: domain.FrameDone})
	}
	return frames
}
