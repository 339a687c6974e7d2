// Package auth implements the authentication plugin framework:
// resumable, multi-round credential exchanges modeled as an explicit
// step function rather than the source's generator/coroutine, plus the
// three built-in plugins (native password, cleartext, no-login).
// Grounded on the teacher's server/auth/password_validator.go for the
// native-password algorithm, re-architected per spec.md §9's guidance
// to replace generator-style plugins with a `step(input) -> Outcome`
// state machine.
package auth

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/mimicd/mimicd/internal/protocol"
)

// Info is the per-round state fed into a plugin's Step.
type Info struct {
	Username           string
	Data               []byte // the client's response bytes for this round
	User               *User
	ConnectAttrs       map[string]string
	ClientPluginName   string
	HandshakeAuthData  []byte
	HandshakePluginName string
}

// User is the identity-provider's view of an account.
type User struct {
	Name           string
	AuthString     string // plugin-specific stored hash/token
	OldAuthString  string // rolling-rotation previous hash, native-password only
	AuthPluginName string
}

// OutcomeKind discriminates the three shapes Step can return.
type OutcomeKind int

const (
	OutcomeChallenge OutcomeKind = iota
	OutcomeSuccess
	OutcomeForbidden
)

// Outcome is a plugin Step's result.
type Outcome struct {
	Kind           OutcomeKind
	Challenge      []byte // OutcomeChallenge
	AuthenticatedAs string // OutcomeSuccess
	Message        string // OutcomeForbidden, optional
}

func Challenge(b []byte) Outcome { return Outcome{Kind: OutcomeChallenge, Challenge: b} }
func Success(as string) Outcome  { return Outcome{Kind: OutcomeSuccess, AuthenticatedAs: as} }
func Forbidden(msg string) Outcome {
	return Outcome{Kind: OutcomeForbidden, Message: msg}
}

// Plugin is a stateful, resumable credential exchange. Step is called
// first with a nil Info to obtain the initial challenge (embedded in
// HandshakeV10), then once per subsequent client round.
type Plugin interface {
	Name() string
	Step(info *Info) (Outcome, error)
}

// NewPlugin constructs a fresh plugin instance by name, or nil if the
// name is unrecognized. nonce is the connection's 20-byte handshake
// nonce, reused across plugins that need it (native password).
func NewPlugin(name string, nonce []byte) Plugin {
	switch name {
	case "mysql_native_password":
		return &NativePasswordPlugin{nonce: nonce}
	case "mysql_clear_password":
		return &ClearPasswordPlugin{}
	case "mysql_no_login":
		return &NoLoginPlugin{}
	default:
		return nil
	}
}

// NativePasswordPlugin implements mysql_native_password: nonce + SHA1.
type NativePasswordPlugin struct {
	nonce   []byte
	stepNum int
}

func (p *NativePasswordPlugin) Name() string { return "mysql_native_password" }

func (p *NativePasswordPlugin) Step(info *Info) (Outcome, error) {
	if p.stepNum == 0 {
		p.stepNum++
		if len(p.nonce) == 0 {
			n, err := protocol.NewNonce(20)
			if err != nil {
				return Outcome{}, err
			}
			p.nonce = n
		}
		return Challenge(p.nonce), nil
	}

	if info == nil || info.User == nil {
		return Forbidden(""), nil
	}
	if len(info.Data) == 0 && info.User.AuthString == "" {
		// quick path: empty password against an empty stored hash
		return Success(info.User.Name), nil
	}
	if verifyAgainst(info.Data, p.nonce, info.User.AuthString) ||
		(info.User.OldAuthString != "" && verifyAgainst(info.Data, p.nonce, info.User.OldAuthString)) {
		return Success(info.User.Name), nil
	}
	return Forbidden(""), nil
}

// verifyAgainst checks the client auth response against a stored
// `*HEX(SHA1(SHA1(password)))` hash: stage2 = SHA1(SHA1(password));
// response = SHA1(password) XOR SHA1(nonce ++ stage2); we recompute
// SHA1(nonce++stage2) and XOR the response back to recover
// SHA1(password), then compare its SHA1 to stage2.
func verifyAgainst(response, nonce []byte, storedHash string) bool {
	stage2 := parseStoredHash(storedHash)
	if stage2 == nil {
		return false
	}
	if len(response) != sha1.Size {
		return false
	}
	h := sha1.New()
	h.Write(nonce)
	h.Write(stage2)
	mask := h.Sum(nil)

	stage1 := make([]byte, sha1.Size)
	for i := range stage1 {
		stage1[i] = response[i] ^ mask[i]
	}
	recomputedStage2 := sha1.Sum(stage1)
	return subtle.ConstantTimeCompare(recomputedStage2[:], stage2) == 1
}

func parseStoredHash(stored string) []byte {
	stored = strings.TrimPrefix(stored, "*")
	b, err := hex.DecodeString(stored)
	if err != nil || len(b) != sha1.Size {
		return nil
	}
	return b
}

// HashPassword returns the `*HEX` stored-hash representation of a
// plaintext password, for seeding IdentityProvider fixtures/tests.
func HashPassword(password string) string {
	stage1 := sha1.Sum([]byte(password))
	stage2 := sha1.Sum(stage1[:])
	return "*" + strings.ToUpper(hex.EncodeToString(stage2[:]))
}

// ClearPasswordPlugin implements mysql_clear_password: the client
// sends the plaintext password null-terminated; a user-supplied
// Check callback validates it.
type ClearPasswordPlugin struct {
	Check   func(username, password string) bool
	stepNum int
}

func (p *ClearPasswordPlugin) Name() string { return "mysql_clear_password" }

func (p *ClearPasswordPlugin) Step(info *Info) (Outcome, error) {
	if p.stepNum == 0 {
		p.stepNum++
		return Challenge(nil), nil
	}
	password := strings.TrimSuffix(string(info.Data), "\x00")
	if p.Check != nil && p.Check(info.Username, password) {
		return Success(info.Username), nil
	}
	return Forbidden(""), nil
}

// NoLoginPlugin always refuses; used to block direct auth on
// proxy-only accounts.
type NoLoginPlugin struct{}

func (p *NoLoginPlugin) Name() string { return "mysql_no_login" }

func (p *NoLoginPlugin) Step(info *Info) (Outcome, error) {
	return Forbidden("account does not support direct login"), nil
}
