package stream

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePacketThenReadPacketRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server)
	done := make(chan error, 1)
	go func() {
		done <- s.WritePacket([]byte("hello world"))
		done <- s.Flush()
	}()

	header := make([]byte, 4)
	_, err := io.ReadFull(client, header)
	require.NoError(t, err)
	length := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	assert.Equal(t, 11, length)
	assert.Equal(t, byte(0), header[3])

	body := make([]byte, length)
	_, err = io.ReadFull(client, body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))

	require.NoError(t, <-done)
	require.NoError(t, <-done)
}

func TestReadPacketReassemblesSingleFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		client.Write([]byte{5, 0, 0, 0})
		client.Write([]byte("abcde"))
	}()

	s := New(server)
	payload, err := s.ReadPacket()
	require.NoError(t, err)
	assert.Equal(t, "abcde", string(payload))
	assert.Equal(t, byte(1), s.Seq())
}

func TestReadPacketSequenceMismatch(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		client.Write([]byte{3, 0, 0, 9}) // seq 9, stream expects 0
		client.Write([]byte("xyz"))
	}()

	s := New(server)
	_, err := s.ReadPacket()
	assert.ErrorIs(t, err, ErrSequenceMismatch)
}

func TestReadPacketEOFBecomesConnectionClosed(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	client.Close()

	s := New(server)
	_, err := s.ReadPacket()
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestResetSeqAndSetSeq(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server)
	s.SetSeq(5)
	assert.Equal(t, byte(5), s.Seq())
	s.ResetSeq()
	assert.Equal(t, byte(0), s.Seq())
}

func TestStatsTrackBytesAndPackets(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := New(server)
	go func() {
		s.WritePacket([]byte("payload"))
		s.Flush()
	}()

	header := make([]byte, 4)
	io.ReadFull(client, header)
	body := make([]byte, 7)
	io.ReadFull(client, body)

	_, bytesWritten, _, packetsWritten := s.Stats()
	assert.Equal(t, uint64(11), bytesWritten)
	assert.Equal(t, uint64(1), packetsWritten)
}

func TestWritePacketExactMultipleOfMaxPayloadAddsTerminatingFrame(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	payload := make([]byte, MaxPayload)
	for i := range payload {
		payload[i] = byte(i)
	}

	s := New(server)
	errCh := make(chan error, 1)
	go func() {
		if err := s.WritePacket(payload); err != nil {
			errCh <- err
			return
		}
		errCh <- s.Flush()
	}()

	header := make([]byte, 4)
	_, err := io.ReadFull(client, header)
	require.NoError(t, err)
	length := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
	assert.Equal(t, MaxPayload, length)

	buf := make([]byte, length)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)

	terminator := make([]byte, 4)
	_, err = io.ReadFull(client, terminator)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 1}, terminator)

	require.NoError(t, <-errCh)
}
