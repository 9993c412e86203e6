package platform

import (
	"fmt"

	"github.com/go-drift/tether/pkg/internal/convert"
)

// Notification is an asynchronous message from native code addressed to a
// live object: an event, or a "change:<property>" update.
type Notification struct {
	Target string
	Event  string
	Data   any
}

// DecodeNotification decodes a {"target", "event", "data"} message with
// DefaultCodec.
func DecodeNotification(data []byte) (Notification, error) {
	return DecodeNotificationWith(DefaultCodec, data)
}

// DecodeNotificationWith decodes a notification using codec.
func DecodeNotificationWith(codec MessageCodec, data []byte) (Notification, error) {
	raw, err := codec.Decode(data)
	if err != nil {
		return Notification{}, err
	}
	m, ok := convert.ToMap(raw)
	if !ok {
		return Notification{}, fmt.Errorf("%w: notification must be an object, got %T", ErrInvalidArguments, raw)
	}
	target, _ := m["target"].(string)
	event, _ := m["event"].(string)
	if target == "" || event == "" {
		return Notification{}, fmt.Errorf("%w: notification requires target and event", ErrInvalidArguments)
	}
	return Notification{Target: target, Event: event, Data: m["data"]}, nil
}
