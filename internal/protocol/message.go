package protocol

import "fmt"

// Tag is the first byte of every frame and selects the message variant.
type Tag byte

const (
	// TagSortRequest carries a partition to be sorted.
	TagSortRequest Tag = 0x01
	// TagSortResponse carries the sorted result of the latest request on
	// the same connection.
	TagSortResponse Tag = 0x02
	// TagShutdown asks the receiver to stop reading and close the
	// connection. It has no payload.
	TagShutdown Tag = 0x03
)

// String returns the variant name for logs.
func (t Tag) String() string {
	switch t {
	case TagSortRequest:
		return "SortRequest"
	case TagSortResponse:
		return "SortResponse"
	case TagShutdown:
		return "ShutdownNotice"
	default:
		return fmt.Sprintf("Tag(0x%02x)", byte(t))
	}
}

// Valid reports whether t is one of the known variants.
func (t Tag) Valid() bool {
	return t == TagSortRequest || t == TagSortResponse || t == TagShutdown
}

// HasPayload reports whether frames with this tag carry a length and payload.
func (t Tag) HasPayload() bool {
	return t == TagSortRequest || t == TagSortResponse
}

// Message is one decoded frame. Payload is nil for TagShutdown.
type Message struct {
	Payload []int8
	Tag     Tag
}

// SortRequest builds a request carrying the given partition.
func SortRequest(partition []int8) Message {
	return Message{Tag: TagSortRequest, Payload: partition}
}

// SortResponse builds a response carrying the sorted sequence.
func SortResponse(sorted []int8) Message {
	return Message{Tag: TagSortResponse, Payload: sorted}
}

// Shutdown builds a ShutdownNotice.
func Shutdown() Message {
	return Message{Tag: TagShutdown}
}

func (m Message) String() string {
	if !m.Tag.HasPayload() {
		return m.Tag.String()
	}
	return fmt.Sprintf("%s{len=%d}", m.Tag, len(m.Payload))
}
