package relay

import "encoding/json"

// Frame events.
const (
	EventJoinChat       = "joinChat"
	EventLeaveChat      = "leaveChat"
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventError          = "error"
)

// eventUnknown labels inbound frames whose event is not recognized.
const eventUnknown = "unknown"

// eventLabel bounds the metric label set to the inbound events.
func eventLabel(event string) string {
	switch event {
	case EventJoinChat, EventLeaveChat, EventSendMessage:
		return event
	}
	return eventUnknown
}

// Frame is the JSON envelope exchanged over the socket.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SendMessage is the payload of a sendMessage frame. Only ChatID is
// interpreted; the payload is relayed to the room as received.
type SendMessage struct {
	ChatID  string `json:"chatId"`
	Content string `json:"content,omitempty"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Message string `json:"message"`
}

func encodeFrame(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}
