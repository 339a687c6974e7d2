// Package stream implements the length+sequence packet framing layer
// that sits directly on top of the transport connection, plus its
// in-place TLS upgrade. It is grounded on the teacher's
// server/net/connection.go (mysqlConn/MysqlTCPConn): byte/packet
// counters and github.com/juju/errors for fatal transport errors. It
// sets no read or write deadlines.
package stream

import (
	"bufio"
	"crypto/tls"
	"io"
	"net"

	jerrors "github.com/juju/errors"
)

// MaxPayload is one less than 16 MiB, the largest payload a single
// frame may carry before the stream must split it across frames.
const MaxPayload = 1<<24 - 1

// ErrConnectionClosed signals a clean EOF on the transport, as opposed
// to a protocol violation.
var ErrConnectionClosed = jerrors.New("stream: connection closed")

// ErrSequenceMismatch signals a packet whose sequence byte did not
// match what the stream expected, which MySQL treats as fatal.
var ErrSequenceMismatch = jerrors.New("stream: sequence mismatch")

// Stream frames payloads over an underlying net.Conn. It is not safe
// for concurrent reads, nor for concurrent writes; a Connection owns
// exactly one goroutine doing each.
type Stream struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	seq byte

	bytesRead    uint64
	bytesWritten uint64
	packetsRead  uint64
	packetsWritten uint64
}

// New wraps conn in a fresh Stream with sequence 0.
func New(conn net.Conn) *Stream {
	return &Stream{
		conn: conn,
		r:    bufio.NewReaderSize(conn, 16*1024),
		w:    bufio.NewWriterSize(conn, 16*1024),
	}
}

// Conn returns the underlying transport.
func (s *Stream) Conn() net.Conn { return s.conn }

// ResetSeq returns the sequence counter to zero. Called at the end of
// each client command and once right after the post-handshake OK.
func (s *Stream) ResetSeq() { s.seq = 0 }

// Seq returns the current expected/next sequence number.
func (s *Stream) Seq() byte { return s.seq }

// SetSeq forces the sequence counter, used when a handler must resume
// a multi-round exchange (e.g. AuthSwitchRequest) at a specific value.
func (s *Stream) SetSeq(n byte) { s.seq = n }

// ReadPacket reads one logical payload, transparently reassembling any
// multi-frame payload (each frame of exactly MaxPayload bytes implies
// more frames follow; a shorter or empty final frame ends it).
func (s *Stream) ReadPacket() ([]byte, error) {
	var payload []byte
	for {
		header := make([]byte, 4)
		if _, err := io.ReadFull(s.r, header); err != nil {
			if err == io.EOF {
				return nil, ErrConnectionClosed
			}
			return nil, jerrors.Trace(err)
		}
		length := int(header[0]) | int(header[1])<<8 | int(header[2])<<16
		seq := header[3]
		if seq != s.seq {
			return nil, jerrors.Trace(ErrSequenceMismatch)
		}
		s.seq++

		if length == 0 {
			return payload, nil
		}
		chunk := make([]byte, length)
		if _, err := io.ReadFull(s.r, chunk); err != nil {
			return nil, jerrors.Trace(err)
		}
		s.bytesRead += uint64(4 + length)
		s.packetsRead++
		payload = append(payload, chunk...)
		if length < MaxPayload {
			return payload, nil
		}
		// exactly MaxPayload: loop to read the continuation frame(s)
	}
}

// WritePacket frames payload into one or more chunks of at most
// MaxPayload bytes and buffers them for the next Flush. A non-empty
// payload that is an exact multiple of MaxPayload is followed by a
// terminating empty frame; an empty payload is sent as one empty frame.
func (s *Stream) WritePacket(payload []byte) error {
	for {
		n := len(payload)
		if n > MaxPayload {
			n = MaxPayload
		}
		if err := s.writeFrame(payload[:n]); err != nil {
			return jerrors.Trace(err)
		}
		payload = payload[n:]
		if n < MaxPayload {
			return nil
		}
		if len(payload) == 0 {
			return s.writeFrame(nil)
		}
	}
}

func (s *Stream) writeFrame(chunk []byte) error {
	header := []byte{
		byte(len(chunk)),
		byte(len(chunk) >> 8),
		byte(len(chunk) >> 16),
		s.seq,
	}
	s.seq++
	if _, err := s.w.Write(header); err != nil {
		return jerrors.Trace(err)
	}
	if len(chunk) > 0 {
		if _, err := s.w.Write(chunk); err != nil {
			return jerrors.Trace(err)
		}
	}
	s.bytesWritten += uint64(len(header) + len(chunk))
	s.packetsWritten++
	return nil
}

// Flush pushes any buffered writes to the transport.
func (s *Stream) Flush() error {
	return jerrors.Trace(s.w.Flush())
}

// Close flushes and closes the underlying transport.
func (s *Stream) Close() error {
	_ = s.w.Flush()
	return s.conn.Close()
}

// UpgradeTLS wraps the stream's transport in a server-side TLS session
// in place: the buffered reader and writer are replaced with ones
// around the TLS conn, so later reads and writes through this same
// Stream are encrypted. Performed between SSLRequest and
// HandshakeResponse41, per the handshake state machine.
func (s *Stream) UpgradeTLS(cfg *tls.Config) error {
	tlsConn := tls.Server(s.conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return jerrors.Trace(err)
	}
	s.conn = tlsConn
	s.r = bufio.NewReaderSize(tlsConn, 16*1024)
	s.w = bufio.NewWriterSize(tlsConn, 16*1024)
	return nil
}

// Stats returns byte/packet counters for diagnostic logging.
func (s *Stream) Stats() (bytesRead, bytesWritten, packetsRead, packetsWritten uint64) {
	return s.bytesRead, s.bytesWritten, s.packetsRead, s.packetsWritten
}
