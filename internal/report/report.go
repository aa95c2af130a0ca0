// Package report collects the user-facing outcome messages of an import.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Level int

const (
	Success Level = iota + 1
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "SUCCESS"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(l.String())), nil
}

// Sink receives messages as they are produced.
type Sink interface {
	AddMessage(level Level, text string)
}

// Message is one report entry. Err carries the underlying error for
// callers that want to match on it; it is not shown to users.
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"message"`
	Err   error  `json:"-"`
}

// Report is an ordered list of messages. The zero value is ready to use.
type Report struct {
	Messages []Message
}

func (r *Report) AddMessage(level Level, text string) {
	r.Messages = append(r.Messages, Message{Level: level, Text: text})
}

// AddError records an error-level message that keeps err for inspection.
func (r *Report) AddError(text string, err error) {
	r.Messages = append(r.Messages, Message{Level: Error, Text: text, Err: err})
}

// AddWarning records a warning-level message that keeps err for inspection.
func (r *Report) AddWarning(text string, err error) {
	r.Messages = append(r.Messages, Message{Level: Warning, Text: text, Err: err})
}

// Filter returns the messages of one level, in order.
func (r *Report) Filter(level Level) []Message {
	var out []Message
	for _, m := range r.Messages {
		if m.Level == level {
			out = append(out, m)
		}
	}
	return out
}

func (r *Report) HasErrors() bool {
	return len(r.Filter(Error)) > 0
}

// Forward replays the report into another sink.
func (r *Report) Forward(s Sink) {
	for _, m := range r.Messages {
		s.AddMessage(m.Level, m.Text)
	}
}

func (r *Report) MarshalJSON() ([]byte, error) {
	msgs := r.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(struct {
		Messages []Message `json:"messages"`
	}{msgs})
}

func (r *Report) String() string {
	var b strings.Builder
	for i, m := range r.Messages {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.Level.String())
		b.WriteString(": ")
		b.WriteString(m.Text)
	}
	return b.String()
}
