// Package codec frames opaque payloads over an unstructured byte stream.
package codec

// Each frame on the wire is the varint encoded payload length followed by
// exactly that many payload bytes:
//
//	varint(len) || payload
//
// There is no checksum or delimiter. A corrupted length prefix desynchronizes
// the stream for good, as the format offers nothing to resync on.
