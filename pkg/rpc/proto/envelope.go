package proto

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"
)

// Envelope header fields.
const (
	fieldCommandID     int32 = 1
	fieldCommandStatus int32 = 2
	fieldHasNext       int32 = 3
)

// ErrMalformed indicates an envelope that can't be decoded.
var ErrMalformed = errors.New("malformed envelope")

// Main is the envelope around every command and response.
type Main struct {
	CommandID     uint32
	CommandStatus CommandStatus
	HasNext       bool
	Content       Content
}

// Err returns a *CommandError if the status is not OK.
func (m *Main) Err() error {
	if m.CommandStatus == StatusOK {
		return nil
	}
	return &CommandError{CommandID: m.CommandID, Status: m.CommandStatus}
}

// String returns a one-line description for logs.
func (m *Main) String() string {
	s := fmt.Sprintf("#%d %s %s", m.CommandID, m.CommandStatus, ContentName(m.Content))
	if m.HasNext {
		s += " (more)"
	}
	if m.Content != nil {
		if text := m.Content.String(); text != "" {
			s += " " + text
		}
	}
	return s
}

func encodeKey(b *proto.Buffer, field int32, wireType int) {
	b.EncodeVarint(uint64(field)<<3 | uint64(wireType))
}

// Marshal encodes the envelope. Zero header fields are omitted.
func (m *Main) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if m.CommandID != 0 {
		encodeKey(b, fieldCommandID, proto.WireVarint)
		b.EncodeVarint(uint64(m.CommandID))
	}
	if m.CommandStatus != StatusOK {
		encodeKey(b, fieldCommandStatus, proto.WireVarint)
		b.EncodeVarint(uint64(m.CommandStatus))
	}
	if m.HasNext {
		encodeKey(b, fieldHasNext, proto.WireVarint)
		b.EncodeVarint(1)
	}
	if m.Content != nil {
		data, err := proto.Marshal(m.Content)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", ContentName(m.Content), err)
		}
		encodeKey(b, m.Content.ContentField(), proto.WireBytes)
		b.EncodeRawBytes(data)
	}
	return b.Bytes(), nil
}

// UnmarshalMain decodes an envelope. Content of unregistered fields is
// kept as *RawContent; other unknown fields are skipped.
func UnmarshalMain(b []byte) (*Main, error) {
	m := &Main{}
	for len(b) > 0 {
		key, n := proto.DecodeVarint(b)
		if n == 0 {
			return nil, ErrMalformed
		}
		b = b[n:]
		field, wireType := int32(key>>3), int(key&7)
		switch wireType {
		case proto.WireVarint:
			val, n := proto.DecodeVarint(b)
			if n == 0 {
				return nil, ErrMalformed
			}
			b = b[n:]
			switch field {
			case fieldCommandID:
				m.CommandID = uint32(val)
			case fieldCommandStatus:
				m.CommandStatus = CommandStatus(val)
			case fieldHasNext:
				m.HasNext = val != 0
			}
		case proto.WireBytes:
			size, n := proto.DecodeVarint(b)
			if n == 0 || uint64(len(b)-n) < size {
				return nil, ErrMalformed
			}
			data := b[n : n+int(size)]
			b = b[n+int(size):]
			if field > fieldHasNext {
				content, err := decodeContent(field, data)
				if err != nil {
					return nil, err
				}
				// the last content field wins, as for any oneof.
				m.Content = content
			}
		case proto.WireFixed32:
			if len(b) < 4 {
				return nil, ErrMalformed
			}
			b = b[4:]
		case proto.WireFixed64:
			if len(b) < 8 {
				return nil, ErrMalformed
			}
			b = b[8:]
		default:
			return nil, fmt.Errorf("%w: wire type %d", ErrMalformed, wireType)
		}
	}
	return m, nil
}

func decodeContent(field int32, data []byte) (Content, error) {
	factory := newContent(field)
	if factory == nil {
		return &RawContent{Field: field, Data: append([]byte(nil), data...)}, nil
	}
	content := factory()
	if err := proto.Unmarshal(data, content); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ContentName(content), err)
	}
	return content, nil
}
