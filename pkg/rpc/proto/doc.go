// Package proto provides the command layer on top of a frame transport.
package proto

// Every frame carries one Main envelope:
//
//	command_id     uint32  field 1
//	command_status enum    field 2
//	has_next       bool    field 3
//	content        oneof   one field per content type
//
// Content types are produced from the device schema elsewhere; this
// package only needs them to be protobuf messages knowing their field
// number in the envelope. Unknown content is kept as RawContent.
