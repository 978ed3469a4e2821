package tcp

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func newFrameReader() *frameReader {
	return &frameReader{frameTimeout: 5 * time.Second, maxFrameSize: DefaultMaxFrameSize}
}

// TestFrameReader_Success verifies that a valid frame is correctly read and decoded.
func TestFrameReader_Success(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	frame, err := encodeFrame("you can leave now", DefaultMaxFrameSize)
	require.NoError(err)

	payload, err := proto.Marshal(wrapperspb.String("you can leave now"))
	require.NoError(err)
	require.Equal(uint32(len(payload)), binary.BigEndian.Uint32(frame[:frameHeaderSize]))
	require.Equal(payload, frame[frameHeaderSize:])

	go func() {
		_, _ = server.Write(frame)
	}()

	text, err := newFrameReader().ReadText(client)
	require.NoError(err)
	require.Equal("you can leave now", text)
}

// TestFrameReader_EmptyText verifies that an empty payload decodes to an empty text.
func TestFrameReader_EmptyText(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	frame, err := encodeFrame("", DefaultMaxFrameSize)
	require.NoError(err)
	require.Len(frame, frameHeaderSize)

	go func() {
		_, _ = server.Write(frame)
	}()

	text, err := newFrameReader().ReadText(client)
	require.NoError(err)
	require.Empty(text)
}

// TestFrameReader_TooLarge verifies that a frame above the limit is rejected before its payload is read.
func TestFrameReader_TooLarge(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		var header [frameHeaderSize]byte
		binary.BigEndian.PutUint32(header[:], DefaultMaxFrameSize+1)
		_, _ = server.Write(header[:])
	}()

	_, err := newFrameReader().ReadText(client)
	require.ErrorIs(err, ErrFrameTooLarge)

	_, err = encodeFrame("0123456789", 4)
	require.ErrorIs(err, ErrFrameTooLarge)
}

// TestFrameReader_PayloadTimeout verifies that a truncated payload fails after the frame timeout.
func TestFrameReader_PayloadTimeout(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		var header [frameHeaderSize]byte
		binary.BigEndian.PutUint32(header[:], 10)
		_, _ = server.Write(header[:])
		_, _ = server.Write([]byte{0x0a, 0x01})
	}()

	reader := &frameReader{frameTimeout: 50 * time.Millisecond, maxFrameSize: DefaultMaxFrameSize}
	begin := time.Now()
	_, err := reader.ReadText(client)
	require.Error(err)
	require.Contains(err.Error(), "read frame payload")
	require.Less(time.Since(begin), time.Second)
}

// TestFrameReader_Garbage verifies that an undecodable payload is reported.
func TestFrameReader_Garbage(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = server.Write([]byte{0x00, 0x00, 0x00, 0x02, 0xff, 0xff})
	}()

	_, err := newFrameReader().ReadText(client)
	require.Error(err)
	require.Contains(err.Error(), "decode frame payload")
}
