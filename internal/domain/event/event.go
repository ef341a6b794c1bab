package event

import (
	"encoding/json"
	"fmt"
)

// Event is a catalog mutation that invalidates cached navigation trees.
type Event interface {
	EventType() string
	EventValue() ([]byte, error)
	Validate() error
}

// DefaultEventValue provides a common implementation for EventValue
func DefaultEventValue(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

func UnmarshalEvent[T Event](data []byte) (T, error) {
	var e T
	err := json.Unmarshal(data, &e)
	return e, err
}

// Operation is the kind of mutation applied to a catalog record.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpMove   Operation = "move"
	OpDelete Operation = "delete"
)

func (o Operation) Valid() bool {
	switch o {
	case OpCreate, OpUpdate, OpMove, OpDelete:
		return true
	}
	return false
}

// Types lists every event type carried on the change stream.
var Types = []string{
	(&CategoryChanged{}).EventType(),
	(&ProductChanged{}).EventType(),
}

// Decode turns a stream payload back into its concrete event.
func Decode(eventType string, data []byte) (Event, error) {
	var (
		e   Event
		err error
	)
	switch eventType {
	case (&CategoryChanged{}).EventType():
		var c *CategoryChanged
		c, err = UnmarshalEvent[*CategoryChanged](data)
		if c != nil {
			e = c
		}
	case (&ProductChanged{}).EventType():
		var p *ProductChanged
		p, err = UnmarshalEvent[*ProductChanged](data)
		if p != nil {
			e = p
		}
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", eventType, err)
	}
	if e == nil {
		return nil, fmt.Errorf("empty %s payload", eventType)
	}
	return e, nil
}
