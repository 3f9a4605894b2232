package proto

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxFrameSize bounds a single frame body.
const DefaultMaxFrameSize = 64 << 10

const headerSize = 4

var (
	// ErrDecode is returned when a frame cannot be parsed into a Packet.
	ErrDecode = errors.New("decode packet")
	// ErrEncode is returned when a Packet cannot be serialized.
	ErrEncode = errors.New("encode packet")
	// ErrFrameTooLarge is returned for frames above the configured limit.
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrDecode)
)

// Marshal encodes a packet into its JSON envelope (without framing).
func Marshal(p Packet) ([]byte, error) {
	var data any
	switch v := p.(type) {
	case Connect:
		data = ConnectData{Name: v.Name}
	case Welcome:
		data = WelcomeData{ClientID: v.ClientID}
	case Message:
		data = MessageData{ChatID: v.ChatID, SenderID: v.SenderID, Text: v.Text}
	case Disconnect:
		return json.Marshal(Envelope{Type: TypeDisconnect})
	case nil:
		return nil, fmt.Errorf("%w: nil packet", ErrEncode)
	default:
		return nil, fmt.Errorf("%w: unknown packet %T", ErrEncode, p)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	body, err := json.Marshal(Envelope{Type: p.Type(), Data: raw})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return body, nil
}

// Unmarshal decodes a JSON envelope into a Packet.
func Unmarshal(body []byte) (Packet, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	switch env.Type {
	case TypeConnect:
		var d ConnectData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return Connect{Name: d.Name}, nil
	case TypeWelcome:
		var d WelcomeData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return Welcome{ClientID: d.ClientID}, nil
	case TypeMessage:
		var d MessageData
		if err := unmarshalData(env, &d); err != nil {
			return nil, err
		}
		return Message{ChatID: d.ChatID, SenderID: d.SenderID, Text: d.Text}, nil
	case TypeDisconnect:
		return Disconnect{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown packet type %q", ErrDecode, env.Type)
	}
}

func unmarshalData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%w: %s packet without data", ErrDecode, env.Type)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%w: %s data: %w", ErrDecode, env.Type, err)
	}
	return nil
}

// Reader reads length-prefixed frames from a byte stream. A stream read may
// carry part of a frame or several frames; Reader reassembles them.
type Reader struct {
	r        *bufio.Reader
	maxFrame int
	header   [headerSize]byte
}

// NewReader wraps r. A non-positive maxFrame selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Reader{r: bufio.NewReader(r), maxFrame: maxFrame}
}

// ReadPacket returns the next packet. It returns io.EOF when the stream ends
// cleanly on a frame boundary and io.ErrUnexpectedEOF when it ends mid-frame.
func (r *Reader) ReadPacket() (Packet, error) {
	if _, err := io.ReadFull(r.r, r.header[:]); err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(r.header[:])
	if size == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrDecode)
	}
	if uint64(size) > uint64(r.maxFrame) {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFrameTooLarge, size, r.maxFrame)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r.r, body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return Unmarshal(body)
}

// Writer writes length-prefixed frames. It is not safe for concurrent use.
type Writer struct {
	w        *bufio.Writer
	maxFrame int
}

// NewWriter wraps w. A non-positive maxFrame selects DefaultMaxFrameSize.
func NewWriter(w io.Writer, maxFrame int) *Writer {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Writer{w: bufio.NewWriter(w), maxFrame: maxFrame}
}

// WritePacket encodes p as one frame and flushes it.
func (w *Writer) WritePacket(p Packet) error {
	body, err := Marshal(p)
	if err != nil {
		return err
	}
	if len(body) > w.maxFrame {
		return fmt.Errorf("%w: frame of %d bytes exceeds %d", ErrEncode, len(body), w.maxFrame)
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(body); err != nil {
		return err
	}
	return w.w.Flush()
}
