package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Identity is the resolved profile of the authenticated user.
type Identity struct {
	UID   string `json:"uid" yaml:"uid"`
	Email string `json:"email" yaml:"email"`
}

// Document is the server-tracked metadata for one uploaded file.
// Indexed is only ever observed from the server, never set locally.
type Document struct {
	FileID       string `json:"file_id" yaml:"file_id"`
	Filename     string `json:"filename" yaml:"filename"`
	Indexed      bool   `json:"indexed" yaml:"indexed"`
	MessageCount int    `json:"message_count" yaml:"message_count"`
}

// Message is one turn of a conversation.
type Message struct {
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Timestamp Timestamp `json:"timestamp" yaml:"timestamp"`
	Error     bool      `json:"error,omitempty" yaml:"error,omitempty"`
}

// ConversationRecord is one conversation slot as returned by the history endpoint.
type ConversationRecord struct {
	Messages []Message `json:"messages" yaml:"messages"`
}

// Timestamp is a time.Time that also accepts the zone-less ISO-8601 form
// emitted by the backend ("2006-01-02T15:04:05.999999"). Zone-less values
// are read as UTC. It always marshals as RFC 3339 in UTC.
//
// Decoding never fails: an unrecognized value leaves the zero time, so one
// odd timestamp cannot drop a whole history response.
type Timestamp struct {
	time.Time
}

// offsetLayouts carry a zone offset without the colon RFC 3339 requires.
var offsetLayouts = []string{
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999-0700",
}

// zonelessLayouts are tried after the zoned forms fail.
var zonelessLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// Seconds stay below it until the year 33658.
const epochMillisThreshold = 1e12

// NewTimestamp wraps t, normalized to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

// ParseTimestamp parses s as RFC 3339, as ISO-8601 with a ±hhmm offset, or
// as a zone-less ISO-8601 time.
func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return NewTimestamp(t), nil
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewTimestamp(t), nil
		}
	}
	for _, layout := range zonelessLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return NewTimestamp(t), nil
		}
	}
	return Timestamp{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	*ts = Timestamp{}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil
	}

	switch v := raw.(type) {
	case string:
		if parsed, err := ParseTimestamp(v); err == nil {
			*ts = parsed
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			*ts = fromEpoch(f)
		}
	}
	return nil
}

// fromEpoch converts epoch seconds, or milliseconds for large values.
func fromEpoch(f float64) Timestamp {
	if f >= epochMillisThreshold || f <= -epochMillisThreshold {
		return NewTimestamp(time.UnixMilli(int64(f)))
	}
	sec := math.Floor(f)
	return NewTimestamp(time.Unix(int64(sec), int64(math.Round((f-sec)*1e9))))
}

// MarshalYAML renders the timestamp as an RFC 3339 string.
func (ts Timestamp) MarshalYAML() (any, error) {
	if ts.IsZero() {
		return nil, nil
	}
	return ts.UTC().Format(time.RFC3339Nano), nil
}
