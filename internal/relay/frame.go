package relay

import (
	"encoding/json"
	"errors"

	"github.com/lukasbauer/tonebridge/internal/codec"
)

// EventType tags an outbound relay event.
type EventType string

const (
	EventStdout  EventType = "stdout"
	EventStderr  EventType = "stderr"
	EventDecoded EventType = "decoded"
	EventClosed  EventType = "closed"
)

// Event is one outbound frame. Data is set for stdout/stderr, Message for decoded.
type Event struct {
	Type    EventType `json:"type"`
	Data    string    `json:"data,omitempty"`
	Message string    `json:"message,omitempty"`
}

// MarshalJSON writes exactly the payload field of the event's type, even when
// it is empty: {"type":"decoded","message":""} is a valid frame.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Type == EventDecoded {
		return json.Marshal(struct {
			Type    EventType `json:"type"`
			Message string    `json:"message"`
		}{e.Type, e.Message})
	}
	return json.Marshal(struct {
		Type EventType `json:"type"`
		Data string    `json:"data"`
	}{e.Type, e.Data})
}

// Command is one inbound frame.
type Command struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var errMalformed = errors.New("malformed command")

// parseCommand accepts only {"type":"send","text":"..."}.
func parseCommand(b []byte) (Command, error) {
	var raw struct {
		Type string          `json:"type"`
		Text json.RawMessage `json:"text"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return Command{}, err
	}
	if raw.Type != "send" {
		return Command{}, errMalformed
	}
	var text string
	if err := json.Unmarshal(raw.Text, &text); err != nil {
		return Command{}, errMalformed
	}
	return Command{Type: raw.Type, Text: text}, nil
}

type stream int

const (
	streamStdout stream = iota
	streamStderr
)

type outputLine struct {
	stream stream
	text   string
}

// eventsFor turns one line of subprocess output into the events sent to the
// connection. A decoded event always directly follows the stdout event it was
// extracted from.
func eventsFor(l outputLine) []Event {
	if l.stream == streamStderr {
		return []Event{{Type: EventStderr, Data: l.text}}
	}
	events := []Event{{Type: EventStdout, Data: l.text}}
	if kind, payload := codec.ClassifyLine(l.text); kind == codec.LineDecoded {
		events = append(events, Event{Type: EventDecoded, Message: payload})
	}
	return events
}
