// Package pkce produces the per-flow anti-forgery state and the RFC 7636
// proof-of-possession pair used by the authorization code flow.
package pkce

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	brokererrors "github.com/jrsteele09/go-auth-broker/internal/errors"
	"golang.org/x/oauth2"
)

const (
	// StateBytes is the entropy of a state token (128 bits).
	StateBytes = 16
	// VerifierBytes is the entropy of a code verifier; encodes to 43 characters.
	VerifierBytes = 32

	MinVerifierLength = 43
	MaxVerifierLength = 128

	// MethodS256 is the only challenge method this broker issues.
	MethodS256 = "S256"

	defaultHistorySize = 4096
)

// Flow is the material generated for one authorization round-trip.
type Flow struct {
	State     string
	Verifier  string
	Challenge string
}

// Generator draws flows from a cryptographically secure source and refuses
// to hand out a value it has recently issued.
type Generator struct {
	rand io.Reader

	mu      sync.Mutex
	seen    map[string]struct{}
	history []string
	next    int
}

type GeneratorOption func(*Generator)

// WithRandom replaces the random source (tests only).
func WithRandom(r io.Reader) GeneratorOption {
	return func(g *Generator) {
		g.rand = r
	}
}

// WithHistorySize sets how many recently issued values are remembered for
// collision detection.
func WithHistorySize(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 0 {
			g.history = make([]string, n)
		}
	}
}

func NewGenerator(options ...GeneratorOption) *Generator {
	g := &Generator{
		rand:    rand.Reader,
		seen:    make(map[string]struct{}),
		history: make([]string, defaultHistorySize),
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// NewFlow returns a fresh state, verifier and S256 challenge. A repeated
// value is reported as ErrEntropyCollision and is never retried.
func (g *Generator) NewFlow() (Flow, error) {
	stateBytes, err := g.read(StateBytes)
	if err != nil {
		return Flow{}, err
	}
	verifierBytes, err := g.read(VerifierBytes)
	if err != nil {
		return Flow{}, err
	}

	flow := Flow{
		State:    hex.EncodeToString(stateBytes),
		Verifier: base64.RawURLEncoding.EncodeToString(verifierBytes),
	}
	flow.Challenge = ChallengeFromVerifier(flow.Verifier)

	if err := g.remember(flow.State, flow.Verifier); err != nil {
		return Flow{}, err
	}
	return flow, nil
}

func (g *Generator) read(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(g.rand, b); err != nil {
		return nil, fmt.Errorf("[pkce NewFlow] read random: %w", err)
	}
	return b, nil
}

func (g *Generator) remember(values ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, v := range values {
		if _, dup := g.seen[v]; dup {
			return fmt.Errorf("[pkce NewFlow] %w", brokererrors.ErrEntropyCollision)
		}
	}
	for _, v := range values {
		if old := g.history[g.next]; old != "" {
			delete(g.seen, old)
		}
		g.history[g.next] = v
		g.seen[v] = struct{}{}
		g.next = (g.next + 1) % len(g.history)
	}
	return nil
}

// ChallengeFromVerifier computes BASE64URL(SHA256(verifier)) without padding.
func ChallengeFromVerifier(verifier string) string {
	return oauth2.S256ChallengeFromVerifier(verifier)
}

// Verify reports whether challenge was derived from verifier with S256.
func Verify(verifier, challenge string) bool {
	expected := ChallengeFromVerifier(verifier)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(challenge)) == 1
}

// ValidVerifier checks the RFC 7636 length and unreserved alphabet rules.
func ValidVerifier(verifier string) error {
	if len(verifier) < MinVerifierLength || len(verifier) > MaxVerifierLength {
		return fmt.Errorf("code_verifier length must be between %d and %d characters", MinVerifierLength, MaxVerifierLength)
	}
	for i := 0; i < len(verifier); i++ {
		if !isUnreserved(verifier[i]) {
			return fmt.Errorf("code_verifier contains invalid character %q", verifier[i])
		}
	}
	return nil
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	}
	return false
}
