package protocol

import (
	"encoding/binary"
	"io"
	"math"
	"unsafe"

	"github.com/pkg/errors"
)

// Frame layout:
//
//	+-----+---------------------+-----------------+
//	| tag | length (uint32, BE) | payload (L B)   |
//	+-----+---------------------+-----------------+
//	  1B        4B, payload tags only
//
// Payload bytes are the two's-complement encoding of each int8 element.
const (
	tagLen    = 1
	lengthLen = 4

	// DefaultMaxPayload is the largest payload the 4-byte length can express.
	DefaultMaxPayload = math.MaxUint32
)

var (
	// ErrUnknownTag is returned when a frame starts with a byte that is not
	// a known Tag. The stream cannot be resynchronised after it.
	ErrUnknownTag = errors.New("protocol: unknown tag")

	// ErrFrameTooLarge is returned when a payload length exceeds the limit
	// configured for the reader, or a payload is too long to encode.
	ErrFrameTooLarge = errors.New("protocol: frame too large")

	// ErrUnexpectedMessage is returned by Expect when the peer sent a valid
	// message of the wrong variant.
	ErrUnexpectedMessage = errors.New("protocol: unexpected message")
)

// WriteMessage encodes m as one frame on w. It does not flush buffered
// writers.
func WriteMessage(w io.Writer, m Message) error {
	if !m.Tag.Valid() {
		return errors.Wrapf(ErrUnknownTag, "encode 0x%02x", byte(m.Tag))
	}
	if !m.Tag.HasPayload() {
		_, err := w.Write([]byte{byte(m.Tag)})
		return errors.Wrapf(err, "write %s", m.Tag)
	}
	if uint64(len(m.Payload)) > DefaultMaxPayload {
		return errors.Wrapf(ErrFrameTooLarge, "encode %s of %d elements", m.Tag, len(m.Payload))
	}

	var hdr [tagLen + lengthLen]byte
	hdr[0] = byte(m.Tag)
	binary.BigEndian.PutUint32(hdr[tagLen:], uint32(len(m.Payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrapf(err, "write %s header", m.Tag)
	}
	if _, err := w.Write(bytesOf(m.Payload)); err != nil {
		return errors.Wrapf(err, "write %s payload", m.Tag)
	}
	return nil
}

// ReadMessage decodes exactly one frame from r.
//
// It returns io.EOF, unwrapped, when the stream ends cleanly before a tag
// byte. A stream that ends inside a frame yields an error wrapping
// io.ErrUnexpectedEOF. Payloads longer than maxPayload are rejected with
// ErrFrameTooLarge before anything is allocated.
func ReadMessage(r io.Reader, maxPayload uint32) (Message, error) {
	var tagBuf [tagLen]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		if err == io.EOF {
			return Message{}, io.EOF
		}
		return Message{}, errors.Wrap(err, "read tag")
	}

	tag := Tag(tagBuf[0])
	if !tag.Valid() {
		return Message{}, errors.Wrapf(ErrUnknownTag, "decode 0x%02x", byte(tag))
	}
	if !tag.HasPayload() {
		return Message{Tag: tag}, nil
	}

	var lenBuf [lengthLen]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, errors.Wrapf(truncated(err), "read %s length", tag)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxPayload {
		return Message{}, errors.Wrapf(ErrFrameTooLarge, "%s of %d bytes, limit %d", tag, n, maxPayload)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Message{}, errors.Wrapf(truncated(err), "read %s payload of %d bytes", tag, n)
	}
	return Message{Tag: tag, Payload: int8sOf(payload)}, nil
}

// truncated maps a clean EOF inside a frame to io.ErrUnexpectedEOF.
func truncated(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// bytesOf reinterprets an int8 slice as its raw bytes without copying.
func bytesOf(s []int8) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s))
}

// int8sOf reinterprets raw bytes as int8 elements without copying.
func int8sOf(b []byte) []int8 {
	if len(b) == 0 {
		return []int8{}
	}
	return unsafe.Slice((*int8)(unsafe.Pointer(&b[0])), len(b))
}
