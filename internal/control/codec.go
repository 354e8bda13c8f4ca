// Package control implements the messages exchanged on the sync data channel
// and the rules that keep two players from echoing each other's actions.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrMalformed     = errors.New("malformed frame")
	ErrUnknownAction = errors.New("unknown control action")
	ErrMissingTime   = errors.New("seek without time")
)

type Kind string

const (
	KindFile    Kind = "file"
	KindControl Kind = "control"
	KindChat    Kind = "chat"
)

type Action string

const (
	ActionPlay  Action = "play"
	ActionPause Action = "pause"
	ActionSeek  Action = "seek"
)

func (a Action) valid() bool {
	return a == ActionPlay || a == ActionPause || a == ActionSeek
}

// Message is one decoded data channel frame.
type Message struct {
	Kind   Kind
	Name   string  // file name (file) or sender name (chat)
	Action Action  // control only
	Time   float64 // seek only
	Text   string  // chat only
}

// frame is the JSON shape on the wire. Field order is the order peers see.
type frame struct {
	Type   Kind     `json:"type,omitempty"`
	Name   *string  `json:"name,omitempty"`
	Action Action   `json:"action,omitempty"`
	Time   *float64 `json:"time,omitempty"`
	Text   *string  `json:"text,omitempty"`
}

func FileMessage(name string) Message {
	return Message{Kind: KindFile, Name: name}
}

func ControlMessage(action Action, t float64) Message {
	return Message{Kind: KindControl, Action: action, Time: t}
}

func ChatMessage(name, text string) Message {
	return Message{Kind: KindChat, Name: name, Text: text}
}

// Encode renders m as a JSON text frame. Play and pause never carry a time;
// seek always does.
func Encode(m Message) ([]byte, error) {
	f := frame{Type: m.Kind}
	switch m.Kind {
	case KindFile:
		if m.Name == "" {
			return nil, fmt.Errorf("%w: file without name", ErrMalformed)
		}
		f.Name = &m.Name
	case KindControl:
		if !m.Action.valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, m.Action)
		}
		f.Action = m.Action
		if m.Action == ActionSeek {
			if math.IsNaN(m.Time) || math.IsInf(m.Time, 0) {
				return nil, fmt.Errorf("%w: seek time %v", ErrMalformed, m.Time)
			}
			t := m.Time
			f.Time = &t
		}
	case KindChat:
		f.Name = &m.Name
		f.Text = &m.Text
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrMalformed, m.Kind)
	}
	return json.Marshal(f)
}

// Decode parses a frame received from the peer. Chat frames without a type
// field, as sent by older peers, are accepted.
func Decode(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch f.Type {
	case KindFile:
		if f.Name == nil || strings.TrimSpace(*f.Name) == "" {
			return Message{}, fmt.Errorf("%w: file without name", ErrMalformed)
		}
		return FileMessage(*f.Name), nil

	case KindControl:
		if !f.Action.valid() {
			return Message{}, fmt.Errorf("%w: %q", ErrUnknownAction, f.Action)
		}
		if f.Action != ActionSeek {
			return ControlMessage(f.Action, 0), nil
		}
		if f.Time == nil {
			return Message{}, ErrMissingTime
		}
		return ControlMessage(ActionSeek, *f.Time), nil

	case KindChat, "":
		if f.Name == nil || f.Text == nil {
			return Message{}, fmt.Errorf("%w: chat without name or text", ErrMalformed)
		}
		return ChatMessage(*f.Name, *f.Text), nil

	default:
		return Message{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, f.Type)
	}
}
