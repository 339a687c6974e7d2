// Package protocol builds and parses the MySQL wire packets: the
// handshake exchange, OK/ERR/EOF, column definitions, and the command
// packets (COM_QUERY, COM_STMT_*, COM_CHANGE_USER). Grounded on the
// teacher's server/net/handshake.go and server/protocol/{auth,mysql_codec}.go,
// generalized from the teacher's hardwired InnoDB server identity to a
// pluggable one.
package protocol

import (
	"crypto/rand"

	jerrors "github.com/juju/errors"
	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/wire"
)

// ProtocolVersion is always 10 for the modern MySQL wire protocol.
const ProtocolVersion = 10

// HandshakeV10 is the server's greeting packet.
type HandshakeV10 struct {
	ServerVersion    string
	ConnectionID     uint32
	AuthPluginData   []byte // nonce, normally 20 bytes
	CapabilityFlags  uint32
	CharacterSet     uint8
	StatusFlags      uint16
	AuthPluginName   string
}

// NewNonce returns a cryptographically random nonce of n bytes
// containing no 0x00 byte (clients that treat it as a C string would
// otherwise truncate it).
func NewNonce(n int) ([]byte, error) {
	buf := make([]byte, n)
	for {
		if _, err := rand.Read(buf); err != nil {
			return nil, jerrors.Trace(err)
		}
		clean := true
		for _, b := range buf {
			if b == 0 {
				clean = false
				break
			}
		}
		if clean {
			return buf, nil
		}
	}
}

// Encode renders the HandshakeV10 payload (without the packet header).
func (h HandshakeV10) Encode() []byte {
	data := h.AuthPluginData
	if len(data) < 8 {
		padded := make([]byte, 8)
		copy(padded, data)
		data = padded
	}
	part1, part2 := data[:8], data[8:]

	buf := make([]byte, 0, 64+len(h.ServerVersion)+len(part2)+len(h.AuthPluginName))
	buf = wire.PutUint1(buf, ProtocolVersion)
	buf = wire.PutNullTerminatedString(buf, h.ServerVersion)
	buf = wire.PutUint4(buf, h.ConnectionID)
	buf = append(buf, part1...)
	buf = append(buf, 0) // filler
	buf = wire.PutUint2(buf, uint16(h.CapabilityFlags))
	buf = wire.PutUint1(buf, h.CharacterSet)
	buf = wire.PutUint2(buf, h.StatusFlags)
	buf = wire.PutUint2(buf, uint16(h.CapabilityFlags>>16))

	authDataLen := byte(0)
	if h.CapabilityFlags&common.ClientPluginAuth != 0 {
		authDataLen = byte(len(data))
	}
	buf = wire.PutUint1(buf, authDataLen)
	buf = append(buf, make([]byte, 10)...) // reserved

	// auth-plugin-data-part-2: at least 13 bytes, null-padded/terminated
	part2Out := make([]byte, len(part2))
	copy(part2Out, part2)
	if len(part2Out) < 13 {
		padded := make([]byte, 13)
		copy(padded, part2Out)
		part2Out = padded
	} else if part2Out[len(part2Out)-1] != 0 {
		part2Out = append(part2Out, 0)
	}
	buf = append(buf, part2Out...)

	if h.CapabilityFlags&common.ClientPluginAuth != 0 {
		buf = wire.PutNullTerminatedString(buf, h.AuthPluginName)
	}
	return buf
}

// HandshakeResponse41 is the client's reply to HandshakeV10.
type HandshakeResponse41 struct {
	CapabilityFlags uint32
	MaxPacketSize   uint32
	CharacterSet    uint8
	Username        string
	AuthResponse    []byte
	Database        string
	AuthPluginName  string
	ConnectAttrs    map[string]string
	ZstdCompressionLevel uint8
}

// IsSSLRequest peeks the raw HandshakeResponse41 bytes and reports
// whether this is actually a bare SSLRequest: capability flags with
// CLIENT_SSL set and nothing meaningful after the reserved 23 bytes.
func IsSSLRequest(b []byte) (capabilities uint32, isSSL bool, ok bool) {
	if len(b) < 32 {
		return 0, false, false
	}
	capLow, _, _ := wire.ReadUint2(b[0:2])
	capHigh, _, _ := wire.ReadUint2(b[2:4])
	caps := uint32(capLow) | uint32(capHigh)<<16
	// Heuristic matching the spec's disambiguation: an SSLRequest is
	// exactly 32 bytes (4 caps + 4 max-packet + 1 charset + 23 reserved)
	// with CLIENT_SSL set and nothing meaningful following.
	if caps&common.ClientSSL != 0 && len(b) == 32 {
		return caps, true, true
	}
	return caps, false, true
}

// DecodeHandshakeResponse41 parses a client HandshakeResponse41 payload.
func DecodeHandshakeResponse41(b []byte) (HandshakeResponse41, error) {
	var r HandshakeResponse41
	if len(b) < 32 {
		return r, wire.ErrMalformedPacket
	}
	capLow, _, _ := wire.ReadUint2(b[0:2])
	capHigh, _, _ := wire.ReadUint2(b[2:4])
	r.CapabilityFlags = uint32(capLow) | uint32(capHigh)<<16

	maxPkt, _, err := wire.ReadUint4(b[4:8])
	if err != nil {
		return r, err
	}
	r.MaxPacketSize = maxPkt
	r.CharacterSet = b[8]

	off := 32 // skip reserved[23] starting at byte 9
	uname, n, err := wire.ReadNullTerminatedString(b[off:])
	if err != nil {
		return r, err
	}
	r.Username = uname
	off += n

	if r.CapabilityFlags&common.ClientPluginAuthLenencClientData != 0 {
		s, n, err := wire.ReadLengthEncodedString(b[off:])
		if err != nil {
			return r, err
		}
		r.AuthResponse = []byte(s)
		off += n
	} else if r.CapabilityFlags&common.ClientSecureConnection != 0 {
		if off >= len(b) {
			return r, wire.ErrMalformedPacket
		}
		l := int(b[off])
		off++
		if off+l > len(b) {
			return r, wire.ErrMalformedPacket
		}
		r.AuthResponse = b[off : off+l]
		off += l
	} else {
		s, n, err := wire.ReadNullTerminatedString(b[off:])
		if err != nil {
			return r, err
		}
		r.AuthResponse = []byte(s)
		off += n
	}

	if r.CapabilityFlags&common.ClientConnectWithDB != 0 {
		db, n, err := wire.ReadNullTerminatedString(b[off:])
		if err != nil {
			return r, err
		}
		r.Database = db
		off += n
	}

	if r.CapabilityFlags&common.ClientPluginAuth != 0 {
		plugin, n, err := wire.ReadNullTerminatedString(b[off:])
		if err != nil {
			return r, err
		}
		r.AuthPluginName = plugin
		off += n
	}

	if r.CapabilityFlags&common.ClientConnectAttrs != 0 && off < len(b) {
		total, n, _, err := wire.ReadLengthEncodedInt(b[off:])
		if err != nil {
			return r, err
		}
		off += n
		end := off + int(total)
		if end > len(b) {
			return r, wire.ErrMalformedPacket
		}
		r.ConnectAttrs = map[string]string{}
		for off < end {
			k, n, err := wire.ReadLengthEncodedString(b[off:])
			if err != nil {
				return r, err
			}
			off += n
			v, n, err := wire.ReadLengthEncodedString(b[off:])
			if err != nil {
				return r, err
			}
			off += n
			r.ConnectAttrs[k] = v
		}
	}

	if r.CapabilityFlags&common.ClientZstdCompressionAlgorithm != 0 && off < len(b) {
		r.ZstdCompressionLevel = b[off]
	}

	return r, nil
}

// AuthSwitchRequest asks the client to restart auth with a different
// plugin, 0xFE + plugin name + plugin data.
func EncodeAuthSwitchRequest(pluginName string, pluginData []byte) []byte {
	buf := []byte{0xFE}
	buf = wire.PutNullTerminatedString(buf, pluginName)
	buf = append(buf, pluginData...)
	return buf
}

// AuthMoreData wraps an intermediate auth-plugin challenge, 0x01 + bytes.
func EncodeAuthMoreData(data []byte) []byte {
	buf := []byte{0x01}
	return append(buf, data...)
}

// ComChangeUser is the parsed payload of COM_CHANGE_USER.
type ComChangeUser struct {
	Username       string
	AuthResponse   []byte
	Database       string
	CharacterSet   uint8
	AuthPluginName string
	ConnectAttrs   map[string]string
}

// DecodeComChangeUser parses a COM_CHANGE_USER payload (the leading
// command byte already stripped).
func DecodeComChangeUser(b []byte, capabilities uint32) (ComChangeUser, error) {
	var r ComChangeUser
	uname, n, err := wire.ReadNullTerminatedString(b)
	if err != nil {
		return r, err
	}
	r.Username = uname
	off := n

	if capabilities&common.ClientSecureConnection != 0 {
		if off >= len(b) {
			return r, wire.ErrMalformedPacket
		}
		l := int(b[off])
		off++
		if off+l > len(b) {
			return r, wire.ErrMalformedPacket
		}
		r.AuthResponse = b[off : off+l]
		off += l
	} else {
		s, n, err := wire.ReadNullTerminatedString(b[off:])
		if err != nil {
			return r, err
		}
		r.AuthResponse = []byte(s)
		off += n
	}

	db, n, err := wire.ReadNullTerminatedString(b[off:])
	if err != nil {
		return r, err
	}
	r.Database = db
	off += n

	if off+2 <= len(b) {
		cs, _, _ := wire.ReadUint2(b[off:])
		r.CharacterSet = uint8(cs)
		off += 2
	}

	if off < len(b) {
		plugin, n, err := wire.ReadNullTerminatedString(b[off:])
		if err == nil {
			r.AuthPluginName = plugin
			off += n
		}
	}

	if capabilities&common.ClientConnectAttrs != 0 && off < len(b) {
		total, n, _, err := wire.ReadLengthEncodedInt(b[off:])
		if err == nil {
			off += n
			end := off + int(total)
			if end <= len(b) {
				r.ConnectAttrs = map[string]string{}
				for off < end {
					k, n, err := wire.ReadLengthEncodedString(b[off:])
					if err != nil {
						break
					}
					off += n
					v, n, err := wire.ReadLengthEncodedString(b[off:])
					if err != nil {
						break
					}
					off += n
					r.ConnectAttrs[k] = v
				}
			}
		}
	}

	return r, nil
}
