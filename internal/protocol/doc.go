// Package protocol defines the framed binary messages exchanged between the
// coordinator and the workers.
//
// Every message starts with a one-byte tag:
//
//	0x01 SortRequest   tag | uint32 length (big-endian) | length bytes
//	0x02 SortResponse  tag | uint32 length (big-endian) | length bytes
//	0x03 ShutdownNotice tag only
//
// Payload bytes are signed 8-bit elements, one byte each. A connection carries
// a sequence of messages until either side sends ShutdownNotice or the stream
// ends. Responses are paired with requests implicitly: the worker answers the
// latest SortRequest before reading the next message.
//
// Decoding is exhaustive and fail-fast. An unknown tag or a truncated frame is
// reported as an error and the caller is expected to drop the connection;
// there is no resynchronisation.
package protocol
