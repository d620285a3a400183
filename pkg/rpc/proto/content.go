package proto

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/golang/protobuf/proto"
)

// Content is one case of the envelope content union.
type Content interface {
	proto.Message
	// ContentField is the field number of this case in the envelope.
	ContentField() int32
}

// ContentFactory creates an empty Content for decoding.
type ContentFactory func() Content

var (
	contentTypes     = make(map[int32]ContentFactory)
	contentTypesLock sync.RWMutex
)

// RegisterContent registers the content type decoded from field.
// Registering a field twice panics.
func RegisterContent(field int32, factory ContentFactory) {
	if field <= fieldHasNext {
		panic(fmt.Sprintf("content field %d overlaps the envelope header", field))
	}
	contentTypesLock.Lock()
	defer contentTypesLock.Unlock()
	if _, exist := contentTypes[field]; exist {
		panic(fmt.Sprintf("content field %d registered twice", field))
	}
	contentTypes[field] = factory
}

func newContent(field int32) ContentFactory {
	contentTypesLock.RLock()
	defer contentTypesLock.RUnlock()
	return contentTypes[field]
}

// RawContent is content of a field with no registered type, or content
// already encoded by other means.
type RawContent struct {
	Field int32
	Data  []byte
}

// Reset implements proto.Message.
func (c *RawContent) Reset() { *c = RawContent{Field: c.Field} }

// String implements proto.Message.
func (c *RawContent) String() string {
	return fmt.Sprintf("field:%d data:%s", c.Field, hex.EncodeToString(c.Data))
}

// ProtoMessage implements proto.Message.
func (*RawContent) ProtoMessage() {}

// Marshal implements proto.Marshaler.
func (c *RawContent) Marshal() ([]byte, error) { return c.Data, nil }

// ContentField implements Content.
func (c *RawContent) ContentField() int32 { return c.Field }

// ContentName returns a short display name of the content type.
func ContentName(c Content) string {
	if c == nil {
		return "none"
	}
	if raw, ok := c.(*RawContent); ok {
		return fmt.Sprintf("raw(%d)", raw.Field)
	}
	if name := proto.MessageName(c); name != "" {
		return name
	}
	return fmt.Sprintf("%T", c)
}
