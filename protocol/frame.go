package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a frame, header excluded.
const MaxFrameSize = 8 << 20

// MaxBlockSize is the largest block a Data frame can carry alongside its
// proof.
const MaxBlockSize = MaxFrameSize - 64<<10

// frameHeaderSize is the length prefix plus the channel and type bytes.
const frameHeaderSize = 6

// Channel numbers. They are fixed on both ends, so no negotiation is needed.
const (
	ChannelMetadata uint8 = 0
	ChannelContent  uint8 = 1

	numChannels = 2
)

// MessageType identifies the body of a frame.
type MessageType uint8

const (
	TypeHandshake MessageType = iota
	TypeOpen
	TypeHave
	TypeRequest
	TypeCancel
	TypeData
	TypeClose
)

func (t MessageType) String() string {
	switch t {
	case TypeHandshake:
		return "handshake"
	case TypeOpen:
		return "open"
	case TypeHave:
		return "have"
	case TypeRequest:
		return "request"
	case TypeCancel:
		return "cancel"
	case TypeData:
		return "data"
	case TypeClose:
		return "close"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

var (
	// ErrFrameTooLarge is returned when a frame exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("protocol: frame too large")

	// ErrMalformedFrame is returned for frames that cannot be decoded.
	ErrMalformedFrame = errors.New("protocol: malformed frame")
)

type frame struct {
	channel uint8
	typ     MessageType
	body    []byte
}

// encodeFrame marshals msg into a complete frame.
func encodeFrame(channel uint8, typ MessageType, msg any) ([]byte, error) {
	body, err := marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", typ, err)
	}
	if len(body)+2 > MaxFrameSize {
		return nil, fmt.Errorf("%w: %s of %d bytes", ErrFrameTooLarge, typ, len(body))
	}
	buf := make([]byte, frameHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)+2)) //nolint:gosec // bounded by MaxFrameSize
	buf[4] = channel
	buf[5] = byte(typ)
	copy(buf[frameHeaderSize:], body)
	return buf, nil
}

// readFrame reads one frame from r. A clean end of stream before the first
// header byte returns io.EOF.
func readFrame(r io.Reader) (frame, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:4]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return frame{}, fmt.Errorf("%w: truncated length", ErrMalformedFrame)
		}
		return frame{}, err
	}
	length := binary.BigEndian.Uint32(header[:4])
	if length < 2 {
		return frame{}, fmt.Errorf("%w: length %d", ErrMalformedFrame, length)
	}
	if length > MaxFrameSize {
		return frame{}, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}
	if _, err := io.ReadFull(r, header[4:]); err != nil {
		return frame{}, fmt.Errorf("%w: truncated header: %w", ErrMalformedFrame, err)
	}
	body := make([]byte, length-2)
	if _, err := io.ReadFull(r, body); err != nil {
		return frame{}, fmt.Errorf("%w: truncated body: %w", ErrMalformedFrame, err)
	}
	return frame{channel: header[4], typ: MessageType(header[5]), body: body}, nil
}
