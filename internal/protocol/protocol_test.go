package protocol

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag(t *testing.T) {
	tests := []struct {
		tag        Tag
		name       string
		valid      bool
		hasPayload bool
	}{
		{tag: TagSortRequest, name: "SortRequest", valid: true, hasPayload: true},
		{tag: TagSortResponse, name: "SortResponse", valid: true, hasPayload: true},
		{tag: TagShutdown, name: "ShutdownNotice", valid: true, hasPayload: false},
		{tag: 0x00, name: "Tag(0x00)", valid: false, hasPayload: false},
		{tag: 0x7f, name: "Tag(0x7f)", valid: false, hasPayload: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.tag.String())
			assert.Equal(t, tt.valid, tt.tag.Valid())
			assert.Equal(t, tt.hasPayload, tt.tag.HasPayload())
		})
	}
}

func TestWriteMessageLayout(t *testing.T) {
	t.Run("sort request", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, SortRequest([]int8{5, -3, 0, 127, -128})))
		assert.Equal(t, []byte{0x01, 0, 0, 0, 5, 0x05, 0xfd, 0x00, 0x7f, 0x80}, buf.Bytes())
	})

	t.Run("sort response with empty payload", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, SortResponse(nil)))
		assert.Equal(t, []byte{0x02, 0, 0, 0, 0}, buf.Bytes())
	})

	t.Run("shutdown has no length", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, Shutdown()))
		assert.Equal(t, []byte{0x03}, buf.Bytes())
	})

	t.Run("unknown tag is refused", func(t *testing.T) {
		var buf bytes.Buffer
		err := WriteMessage(&buf, Message{Tag: 0x09})
		assert.ErrorIs(t, err, ErrUnknownTag)
		assert.Zero(t, buf.Len())
	})
}

func TestReadMessage(t *testing.T) {
	t.Run("stream of messages", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, SortRequest([]int8{1, -1})))
		require.NoError(t, WriteMessage(&buf, SortResponse([]int8{-1, 1})))
		require.NoError(t, WriteMessage(&buf, Shutdown()))

		m, err := ReadMessage(&buf, DefaultMaxPayload)
		require.NoError(t, err)
		assert.Equal(t, TagSortRequest, m.Tag)
		assert.Equal(t, []int8{1, -1}, m.Payload)

		m, err = ReadMessage(&buf, DefaultMaxPayload)
		require.NoError(t, err)
		assert.Equal(t, TagSortResponse, m.Tag)
		assert.Equal(t, []int8{-1, 1}, m.Payload)

		m, err = ReadMessage(&buf, DefaultMaxPayload)
		require.NoError(t, err)
		assert.Equal(t, Shutdown(), m)

		_, err = ReadMessage(&buf, DefaultMaxPayload)
		assert.Equal(t, io.EOF, err)
	})

	t.Run("empty payload decodes to empty slice", func(t *testing.T) {
		m, err := ReadMessage(bytes.NewReader([]byte{0x01, 0, 0, 0, 0}), DefaultMaxPayload)
		require.NoError(t, err)
		assert.NotNil(t, m.Payload)
		assert.Empty(t, m.Payload)
	})

	t.Run("all byte values survive", func(t *testing.T) {
		payload := make([]int8, 256)
		for i := range payload {
			payload[i] = int8(i - 128)
		}
		var buf bytes.Buffer
		require.NoError(t, WriteMessage(&buf, SortRequest(payload)))

		m, err := ReadMessage(&buf, DefaultMaxPayload)
		require.NoError(t, err)
		assert.Equal(t, payload, m.Payload)
	})

	malformed := []struct {
		name  string
		input []byte
		want  error
	}{
		{name: "unknown tag", input: []byte{0x04}, want: ErrUnknownTag},
		{name: "zero tag", input: []byte{0x00, 0, 0, 0, 0}, want: ErrUnknownTag},
		{name: "missing length", input: []byte{0x01}, want: io.ErrUnexpectedEOF},
		{name: "short length", input: []byte{0x02, 0, 0}, want: io.ErrUnexpectedEOF},
		{name: "short payload", input: []byte{0x01, 0, 0, 0, 3, 1, 2}, want: io.ErrUnexpectedEOF},
		{name: "missing payload", input: []byte{0x01, 0, 0, 0, 1}, want: io.ErrUnexpectedEOF},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMessage(bytes.NewReader(tt.input), DefaultMaxPayload)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("payload over limit", func(t *testing.T) {
		_, err := ReadMessage(bytes.NewReader([]byte{0x01, 0, 0, 1, 0}), 255)
		assert.ErrorIs(t, err, ErrFrameTooLarge)
	})
}

func TestConn(t *testing.T) {
	client, server := net.Pipe()
	cc, sc := NewConn(client), NewConn(server)
	defer cc.Close()
	defer sc.Close()

	go func() {
		m, err := sc.Expect(TagSortRequest)
		if err != nil {
			return
		}
		out := make([]int8, len(m.Payload))
		for i, v := range m.Payload {
			out[len(out)-1-i] = v
		}
		_ = sc.Send(SortResponse(out))
		_ = sc.Send(Shutdown())
	}()

	require.NoError(t, cc.Send(SortRequest([]int8{1, 2, 3})))
	m, err := cc.Expect(TagSortResponse)
	require.NoError(t, err)
	assert.Equal(t, []int8{3, 2, 1}, m.Payload)

	_, err = cc.Expect(TagSortResponse)
	assert.ErrorIs(t, err, ErrUnexpectedMessage)
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, "SortRequest{len=3}", SortRequest([]int8{1, 2, 3}).String())
	assert.Equal(t, "ShutdownNotice", Shutdown().String())
}
