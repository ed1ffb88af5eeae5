package probe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// EventType tags a streamed probe event.
type EventType string

const (
	EventStart    EventType = "start"
	EventProgress EventType = "progress"
	EventDone     EventType = "done"
)

// Event is one line of a streamed probe. Which fields are set depends on Type.
type Event struct {
	Type                EventType `json:"type"`
	Total               int       `json:"total,omitempty"`
	Checked             int       `json:"checked,omitempty"`
	ConfiguredLanguages []string  `json:"configuredLanguages,omitempty"`
}

// MarshalJSON writes exactly the fields belonging to the event's type.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStart:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Total int       `json:"total"`
		}{e.Type, e.Total})
	case EventProgress:
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Checked int       `json:"checked"`
			Total   int       `json:"total"`
		}{e.Type, e.Checked, e.Total})
	case EventDone:
		langs := e.ConfiguredLanguages
		if langs == nil {
			langs = []string{}
		}
		return json.Marshal(struct {
			Type                EventType `json:"type"`
			ConfiguredLanguages []string  `json:"configuredLanguages"`
		}{e.Type, langs})
	default:
		return nil, fmt.Errorf("unknown probe event type %q", e.Type)
	}
}

// Lines longer than this are discarded.
const maxEventLine = 1 << 20

// DecodeEvents reads newline-delimited events from r and passes each to fn.
// Blank, malformed, untyped or oversized lines are skipped. It returns nil
// once r is exhausted, or the read error if any.
func DecodeEvents(r io.Reader, fn func(Event)) error {
	br := bufio.NewReaderSize(r, 64*1024)

	var (
		line     []byte
		overflow bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !overflow {
				line = append(line, chunk...)
				overflow = len(line) > maxEventLine
			}
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		if !overflow {
			line = append(line, chunk...)
			if len(line) <= maxEventLine {
				decodeLine(line, fn)
			}
		}
		line, overflow = line[:0], false

		if err != nil {
			return nil
		}
	}
}

func decodeLine(line []byte, fn func(Event)) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil || ev.Type == "" {
		return
	}
	fn(ev)
}
