package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestPacketRoundTrip(t *testing.T) {
	packets := []Packet{
		Connect{Name: "alice"},
		Connect{Name: ""},
		Welcome{ClientID: 0},
		Welcome{ClientID: 42},
		Message{ChatID: 1, SenderID: 7, Text: "hi"},
		Message{},
		Message{Text: "line one\nline two é"},
		Disconnect{},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	for _, p := range packets {
		require.NoError(t, w.WritePacket(p))
	}

	r := NewReader(&buf, 0)
	for _, want := range packets {
		got, err := r.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := r.ReadPacket()
	require.ErrorIs(t, err, io.EOF)
}

func TestReaderReassemblesSplitFrames(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	require.NoError(t, w.WritePacket(Connect{Name: "bob"}))
	require.NoError(t, w.WritePacket(Message{SenderID: 3, Text: "split me"}))

	r := NewReader(iotest.OneByteReader(&buf), 0)

	p, err := r.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, Connect{Name: "bob"}, p)

	p, err = r.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, Message{SenderID: 3, Text: "split me"}, p)
}

func TestReaderRejectsOversizedFrame(t *testing.T) {
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], 1024)

	r := NewReader(bytes.NewReader(header[:]), 16)
	_, err := r.ReadPacket()
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.ErrorIs(t, err, ErrDecode)
}

func TestReaderTruncatedFrame(t *testing.T) {
	body := []byte(`{"type":"disconnect"}`)
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	stream := append(header[:], body[:5]...)

	_, err := NewReader(bytes.NewReader(stream), 0).ReadPacket()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "hello world"},
		{name: "unknown type", body: `{"type":"shout","data":{}}`},
		{name: "connect without data", body: `{"type":"connect"}`},
		{name: "bad message data", body: `{"type":"message","data":{"chat_id":"x"}}`},
		{name: "negative id", body: `{"type":"welcome","data":{"client_id":-1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.body))
			require.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestReaderEmptyFrame(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0, 0, 0, 0}), 0).ReadPacket()
	require.ErrorIs(t, err, ErrDecode)
}

func TestMarshalNilPacket(t *testing.T) {
	_, err := Marshal(nil)
	require.True(t, errors.Is(err, ErrEncode))
}

func TestWireFormat(t *testing.T) {
	body, err := Marshal(Welcome{ClientID: 5})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"welcome","data":{"client_id":5}}`, string(body))

	body, err = Marshal(Disconnect{})
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"disconnect"}`, string(body))
}
