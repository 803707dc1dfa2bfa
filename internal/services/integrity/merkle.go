package integrity

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Root is a node or root hash of the move tree
type Root [sha256.Size]byte

// Hex returns the lowercase hex form
func (r Root) Hex() string {
	return hex.EncodeToString(r[:])
}

// ParseRoot parses a hex root with an optional 0x prefix
func ParseRoot(s string) (Root, error) {
	var r Root
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return r, fmt.Errorf("decode root: %w", err)
	}
	if len(b) != len(r) {
		return r, fmt.Errorf("decode root: want %d bytes, got %d", len(r), len(b))
	}
	copy(r[:], b)
	return r, nil
}

// ErrProofIndex is returned when a proof is requested for a move outside the log
var ErrProofIndex = errors.New("move index out of range")

// Outcome is the result of comparing a recomputed digest with a recorded one
type Outcome string

const (
	OutcomeMatch        Outcome = "match"
	OutcomeMismatch     Outcome = "mismatch"
	OutcomeUnverifiable Outcome = "unverifiable" // empty move log
)

const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// Canonical encodes the fields of a move that the digest covers: sequence,
// side, squares, promotion, terminal label, position digest and signature.
// Timestamps and verification outcomes are excluded. Each variable-length
// field is length prefixed so field boundaries cannot be shifted.
func Canonical(rec model.MoveRecord) []byte {
	var buf bytes.Buffer
	var num [8]byte
	binary.BigEndian.PutUint64(num[:], uint64(rec.Sequence))
	buf.Write(num[:])

	for _, field := range [][]byte{
		[]byte(rec.Side),
		[]byte(rec.Move.From),
		[]byte(rec.Move.To),
		[]byte(rec.Move.Promotion),
		[]byte(rec.TerminalLabel),
		[]byte(rec.PositionDigest),
		rec.Signature,
	} {
		binary.BigEndian.PutUint32(num[:4], uint32(len(field)))
		buf.Write(num[:4])
		buf.Write(field)
	}
	return buf.Bytes()
}

// LeafHash hashes one canonicalized move record
func LeafHash(rec model.MoveRecord) Root {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(Canonical(rec))
	var r Root
	copy(r[:], h.Sum(nil))
	return r
}

// combine hashes two children after sorting them, so the parent does not
// depend on which child is left or right
func combine(a, b Root) Root {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	h := sha256.New()
	h.Write([]byte{nodePrefix})
	h.Write(a[:])
	h.Write(b[:])
	var r Root
	copy(r[:], h.Sum(nil))
	return r
}

// Digest returns the root over the move log. ok is false for an empty log,
// which has no defined root.
func Digest(moves []model.MoveRecord) (root Root, ok bool) {
	if len(moves) == 0 {
		return Root{}, false
	}
	level := make([]Root, len(moves))
	for i, m := range moves {
		level[i] = LeafHash(m)
	}
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0], true
}

// DigestSession is Digest over a session's move log
func DigestSession(s *model.Session) (Root, bool) {
	return Digest(s.Moves)
}

// DigestHex returns the hex root or an empty string for an empty log
func DigestHex(moves []model.MoveRecord) string {
	root, ok := Digest(moves)
	if !ok {
		return ""
	}
	return root.Hex()
}

// CompareToStored recomputes the digest and compares it to a previously
// recorded root. An unparseable recorded root is a mismatch.
func CompareToStored(moves []model.MoveRecord, recorded string) (Outcome, string) {
	root, ok := Digest(moves)
	if !ok {
		return OutcomeUnverifiable, ""
	}
	want, err := ParseRoot(recorded)
	if err != nil || want != root {
		return OutcomeMismatch, root.Hex()
	}
	return OutcomeMatch, root.Hex()
}

// Proof returns the sibling hashes needed to recompute the root from the leaf
// at index. Siblings carry no direction because children are sorted.
func Proof(moves []model.MoveRecord, index int) ([]Root, error) {
	if index < 0 || index >= len(moves) {
		return nil, fmt.Errorf("%w: %d of %d", ErrProofIndex, index, len(moves))
	}
	level := make([]Root, len(moves))
	for i, m := range moves {
		level[i] = LeafHash(m)
	}

	var proof []Root
	for len(level) > 1 {
		sibling := index ^ 1
		if sibling >= len(level) {
			// odd node out is paired with itself
			sibling = index
		}
		proof = append(proof, level[sibling])
		level = nextLevel(level)
		index /= 2
	}
	return proof, nil
}

// VerifyProof checks that leaf is included under root
func VerifyProof(leaf Root, proof []Root, root Root) bool {
	cur := leaf
	for _, sibling := range proof {
		cur = combine(cur, sibling)
	}
	return cur == root
}

func nextLevel(level []Root) []Root {
	next := make([]Root, 0, (len(level)+1)/2)
	for i := 0; i < len(level); i += 2 {
		if i+1 < len(level) {
			next = append(next, combine(level[i], level[i+1]))
		} else {
			next = append(next, combine(level[i], level[i]))
		}
	}
	return next
}
