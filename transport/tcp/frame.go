package tcp

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// frameHeaderSize is the size of the big-endian length prefix of every frame.
const frameHeaderSize = 4

// frameReader reads and decodes individual text frames from a net.Conn.
//
// A frame is a 4-byte big-endian payload length followed by the payload, a serialized
// google.protobuf.StringValue:
//  1. Read the length (no timeout, the connection may idle between messages)
//  2. Validate the length (<= maxFrameSize)
//  3. Set the frame timeout and read the payload
//  4. Decode the payload
//
// frameReader is NOT goroutine-safe, a connection has exactly one reader.
type frameReader struct {
	frameTimeout time.Duration
	maxFrameSize uint32
	lenBuf       [frameHeaderSize]byte
}

// ReadText reads one complete frame from conn and returns its text.
func (fr *frameReader) ReadText(conn net.Conn) (string, error) {
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return "", fmt.Errorf("clear read deadline: %w", err)
	}

	if _, err := io.ReadFull(conn, fr.lenBuf[:]); err != nil {
		return "", fmt.Errorf("read frame length: %w", err)
	}

	frameLen := binary.BigEndian.Uint32(fr.lenBuf[:])
	if frameLen > fr.maxFrameSize {
		return "", fmt.Errorf("%w: %d exceeds maximum %d", ErrFrameTooLarge, frameLen, fr.maxFrameSize)
	}

	if err := conn.SetReadDeadline(time.Now().Add(fr.frameTimeout)); err != nil {
		return "", fmt.Errorf("set frame deadline: %w", err)
	}

	payload := make([]byte, frameLen)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return "", fmt.Errorf("read frame payload: %w", err)
	}

	var value wrapperspb.StringValue
	if err := proto.Unmarshal(payload, &value); err != nil {
		return "", fmt.Errorf("decode frame payload: %w", err)
	}

	return value.GetValue(), nil
}

// encodeFrame builds the complete frame, length prefix included, for text.
func encodeFrame(text string, maxFrameSize uint32) ([]byte, error) {
	payload, err := proto.Marshal(wrapperspb.String(text))
	if err != nil {
		return nil, fmt.Errorf("encode frame payload: %w", err)
	}

	if uint64(len(payload)) > uint64(maxFrameSize) {
		return nil, fmt.Errorf("%w: %d exceeds maximum %d", ErrFrameTooLarge, len(payload), maxFrameSize)
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[:frameHeaderSize], uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)

	return frame, nil
}
