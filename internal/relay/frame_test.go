package relay

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Command
		wantErr bool
	}{
		{"send", `{"type":"send","text":"hello"}`, Command{Type: "send", Text: "hello"}, false},
		{"empty text", `{"type":"send","text":""}`, Command{Type: "send"}, false},
		{"not json", `hello`, Command{}, true},
		{"unknown type", `{"type":"ping","text":"x"}`, Command{}, true},
		{"missing text", `{"type":"send"}`, Command{}, true},
		{"text not a string", `{"type":"send","text":5}`, Command{}, true},
		{"array", `[1,2]`, Command{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCommand([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseCommand(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseCommand(%s) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEventsFor(t *testing.T) {
	tests := []struct {
		name string
		line outputLine
		want []Event
	}{
		{
			name: "plain stdout",
			line: outputLine{streamStdout, "Listening"},
			want: []Event{{Type: EventStdout, Data: "Listening"}},
		},
		{
			name: "decoded stdout",
			line: outputLine{streamStdout, "Decoded message with length 2: 'hi'"},
			want: []Event{
				{Type: EventStdout, Data: "Decoded message with length 2: 'hi'"},
				{Type: EventDecoded, Message: "hi"},
			},
		},
		{
			name: "stderr is forwarded verbatim",
			line: outputLine{streamStderr, "Decoded message with length 2: 'hi'"},
			want: []Event{{Type: EventStderr, Data: "Decoded message with length 2: 'hi'"}},
		},
		{
			name: "decoded empty payload",
			line: outputLine{streamStdout, "Decoded message with length 0: ''"},
			want: []Event{
				{Type: EventStdout, Data: "Decoded message with length 0: ''"},
				{Type: EventDecoded},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventsFor(tt.line); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("eventsFor() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEventJSON(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"stdout", Event{Type: EventStdout, Data: "Listening"}, `{"type":"stdout","data":"Listening"}`},
		{"empty stdout line", Event{Type: EventStdout}, `{"type":"stdout","data":""}`},
		{"stderr", Event{Type: EventStderr, Data: "oops"}, `{"type":"stderr","data":"oops"}`},
		{"decoded", Event{Type: EventDecoded, Message: "hi"}, `{"type":"decoded","message":"hi"}`},
		{"decoded empty message", Event{Type: EventDecoded}, `{"type":"decoded","message":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.ev)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal(%+v) = %s, want %s", tt.ev, b, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateConnecting: "connecting",
		StateActive:     "active",
		StateClosing:    "closing",
		StateClosed:     "closed",
		State(42):       "unknown",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", st, got, want)
		}
	}
}
