package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bnema/popkeys/internal/mediakey"
	"google.golang.org/protobuf/encoding/protowire"
)

// maxFrameSize bounds a single message on the socket
const maxFrameSize = 1 << 20

// MessageType identifies the payload of a Message
type MessageType int32

const (
	MessageTypeUnspecified MessageType = iota
	MessageTypeStatus
	MessageTypeStatusResponse
	MessageTypeSubscribe
	MessageTypeKeyEvent
	MessageTypeError
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeStatus:
		return "STATUS"
	case MessageTypeStatusResponse:
		return "STATUS_RESPONSE"
	case MessageTypeSubscribe:
		return "SUBSCRIBE"
	case MessageTypeKeyEvent:
		return "KEY_EVENT"
	case MessageTypeError:
		return "ERROR"
	default:
		return "UNSPECIFIED"
	}
}

// Message is the envelope for everything sent over the socket.
//
//	message Message {
//	  MessageType type = 1;
//	  KeyEvent key_event = 2;
//	  StatusResponse status = 3;
//	  string error = 4;
//	}
type Message struct {
	Type     MessageType
	KeyEvent *KeyEvent
	Status   *StatusResponse
	Error    string
}

// KeyEvent is a single media key press.
//
//	message KeyEvent {
//	  int32 key = 1;
//	  string label = 2;
//	  int64 timestamp_unix_nano = 3;
//	  uint64 sequence = 4;
//	}
type KeyEvent struct {
	Key       mediakey.Type
	Label     string
	Timestamp time.Time
	Sequence  uint64
}

// StatusResponse describes the running daemon.
//
//	message StatusResponse {
//	  string app_name = 1;
//	  string backend = 2;
//	  string kind = 3;
//	  bool grabbed = 4;
//	  int32 subscribers = 5;
//	}
type StatusResponse struct {
	AppName     string
	Backend     string
	Kind        string
	Grabbed     bool
	Subscribers int32
}

// NewStatusMessage creates a status query
func NewStatusMessage() *Message {
	return &Message{Type: MessageTypeStatus}
}

// NewSubscribeMessage asks the daemon to stream key events
func NewSubscribeMessage() *Message {
	return &Message{Type: MessageTypeSubscribe}
}

// NewStatusResponseMessage wraps a status response
func NewStatusResponseMessage(status *StatusResponse) *Message {
	return &Message{Type: MessageTypeStatusResponse, Status: status}
}

// NewKeyEventMessage wraps a key press
func NewKeyEventMessage(key mediakey.Type, at time.Time, seq uint64) *Message {
	return &Message{
		Type: MessageTypeKeyEvent,
		KeyEvent: &KeyEvent{
			Key:       key,
			Label:     key.String(),
			Timestamp: at,
			Sequence:  seq,
		},
	}
}

// NewErrorMessage creates an error reply
func NewErrorMessage(errMsg string) *Message {
	return &Message{Type: MessageTypeError, Error: errMsg}
}

// GetStatusResponse extracts the status from a STATUS_RESPONSE message
func GetStatusResponse(msg *Message) (*StatusResponse, error) {
	if msg.Type != MessageTypeStatusResponse {
		return nil, fmt.Errorf("message is not a status response")
	}
	if msg.Status == nil {
		return nil, fmt.Errorf("invalid status response payload")
	}
	return msg.Status, nil
}

// GetKeyEvent extracts the event from a KEY_EVENT message
func GetKeyEvent(msg *Message) (*KeyEvent, error) {
	if msg.Type != MessageTypeKeyEvent {
		return nil, fmt.Errorf("message is not a key event")
	}
	if msg.KeyEvent == nil {
		return nil, fmt.Errorf("invalid key event payload")
	}
	return msg.KeyEvent, nil
}

// Marshal encodes m in protobuf wire format
func (m *Message) Marshal() []byte {
	var b []byte
	if m.Type != MessageTypeUnspecified {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.Type))
	}
	if m.KeyEvent != nil {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, m.KeyEvent.marshal())
	}
	if m.Status != nil {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Status.marshal())
	}
	if m.Error != "" {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendString(b, m.Error)
	}
	return b
}

// Unmarshal decodes a Message, skipping unknown fields
func (m *Message) Unmarshal(b []byte) error {
	*m = Message{}
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Type = MessageType(v)
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			m.KeyEvent = &KeyEvent{}
			return n, m.KeyEvent.unmarshal(v)
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			m.Status = &StatusResponse{}
			return n, m.Status.unmarshal(v)
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Error = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (e *KeyEvent) marshal() []byte {
	var b []byte
	if e.Key != mediakey.Unknown {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Key))
	}
	if e.Label != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, e.Label)
	}
	if !e.Timestamp.IsZero() {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Timestamp.UnixNano()))
	}
	if e.Sequence != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, e.Sequence)
	}
	return b
}

func (e *KeyEvent) unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.Key = mediakey.Type(int32(v))
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			e.Label = v
			return n, nil
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.Timestamp = time.Unix(0, int64(v))
			return n, nil
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			e.Sequence = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

func (s *StatusResponse) marshal() []byte {
	var b []byte
	if s.AppName != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, s.AppName)
	}
	if s.Backend != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, s.Backend)
	}
	if s.Kind != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, s.Kind)
	}
	if s.Grabbed {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if s.Subscribers != 0 {
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(s.Subscribers))
	}
	return b
}

func (s *StatusResponse) unmarshal(b []byte) error {
	return consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			s.AppName = v
			return n, nil
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			s.Backend = v
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			s.Kind = v
			return n, nil
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			s.Grabbed = protowire.DecodeBool(v)
			return n, nil
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			s.Subscribers = int32(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// consumeFields walks every field in b. field consumes the value that follows
// the tag and returns its length, negative on a malformed value.
func consumeFields(b []byte, field func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		n, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("invalid value for field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

// readMessage reads a length-prefixed message
func readMessage(r io.Reader) (*Message, error) {
	// Read message length (4 bytes, big endian)
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("failed to read message length: %w", err)
	}
	if length > maxFrameSize {
		return nil, fmt.Errorf("message of %d bytes exceeds limit of %d", length, maxFrameSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read message data: %w", err)
	}

	var msg Message
	if err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return &msg, nil
}

// writeMessage writes msg with its length prefix in a single write
func writeMessage(w io.Writer, msg *Message) error {
	data := msg.Marshal()
	if len(data) > maxFrameSize {
		return fmt.Errorf("message of %d bytes exceeds limit of %d", len(data), maxFrameSize)
	}

	frame := make([]byte, 4, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data))) //nolint:gosec // bounded by maxFrameSize
	frame = append(frame, data...)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// isClosed reports whether err means the peer went away
func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
