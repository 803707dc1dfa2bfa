package integrity

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chesschain-go/internal/model"
)

var files = "abcdefgh"

func makeMoves(n int) []model.MoveRecord {
	moves := make([]model.MoveRecord, n)
	for i := range moves {
		side := model.SideWhite
		if i%2 == 1 {
			side = model.SideBlack
		}
		moves[i] = model.MoveRecord{
			Sequence:       i,
			Side:           side,
			Move:           model.Move{From: fmt.Sprintf("%c2", files[i%8]), To: fmt.Sprintf("%c4", files[(i+1)%8])},
			PositionDigest: fmt.Sprintf("pos-%d", i),
			Signature:      []byte{byte(i), byte(i >> 8)},
			Verification:   model.VerificationVerified,
			Timestamp:      time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
		}
	}
	return moves
}

func TestDigest_EmptyLogIsUnverifiable(t *testing.T) {
	_, ok := Digest(nil)
	assert.False(t, ok)

	outcome, computed := CompareToStored(nil, "00")
	assert.Equal(t, OutcomeUnverifiable, outcome)
	assert.Empty(t, computed)
	assert.Empty(t, DigestHex(nil))
}

func TestDigest_SingleMoveIsLeaf(t *testing.T) {
	moves := makeMoves(1)
	root, ok := Digest(moves)
	require.True(t, ok)
	assert.Equal(t, LeafHash(moves[0]), root)
}

func TestDigest_Deterministic(t *testing.T) {
	moves := makeMoves(7)
	a, _ := Digest(moves)
	b, _ := Digest(moves)
	assert.Equal(t, a, b)
}

func TestDigest_IgnoresVolatileFields(t *testing.T) {
	moves := makeMoves(3)
	before, _ := Digest(moves)

	moves[1].Timestamp = moves[1].Timestamp.Add(time.Hour)
	moves[1].Verification = model.VerificationUnverified
	after, _ := Digest(moves)

	assert.Equal(t, before, after)
}

func TestDigest_DetectsTampering(t *testing.T) {
	moves := makeMoves(5)
	root, _ := Digest(moves)

	tampered := makeMoves(5)
	tampered[2].Move.To = "h8"
	changed, _ := Digest(tampered)
	assert.NotEqual(t, root, changed)

	outcome, _ := CompareToStored(tampered, root.Hex())
	assert.Equal(t, OutcomeMismatch, outcome)

	outcome, computed := CompareToStored(moves, "0x"+root.Hex())
	assert.Equal(t, OutcomeMatch, outcome)
	assert.Equal(t, root.Hex(), computed)
}

func TestDigest_AppendChangesRoot(t *testing.T) {
	seen := make(map[Root]int)
	for n := 1; n <= 200; n++ {
		root, ok := Digest(makeMoves(n))
		require.True(t, ok)
		if prev, dup := seen[root]; dup {
			t.Fatalf("logs of length %d and %d share a root", prev, n)
		}
		seen[root] = n
	}
}

func TestDigest_OddNodePairsWithItself(t *testing.T) {
	moves := makeMoves(3)
	l0, l1, l2 := LeafHash(moves[0]), LeafHash(moves[1]), LeafHash(moves[2])
	want := combine(combine(l0, l1), combine(l2, l2))

	root, _ := Digest(moves)
	assert.Equal(t, want, root)
}

func TestCombine_OrderInsensitive(t *testing.T) {
	moves := makeMoves(2)
	a, b := LeafHash(moves[0]), LeafHash(moves[1])
	assert.Equal(t, combine(a, b), combine(b, a))
}

func TestCanonical_FieldBoundaries(t *testing.T) {
	a := model.MoveRecord{Move: model.Move{From: "e2", To: "e4"}, PositionDigest: "x"}
	b := model.MoveRecord{Move: model.Move{From: "e2", To: "e4x"}}
	assert.NotEqual(t, Canonical(a), Canonical(b))
}

func TestProof_AllIndices(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 8, 13} {
		moves := makeMoves(n)
		root, _ := Digest(moves)
		for i := 0; i < n; i++ {
			proof, err := Proof(moves, i)
			require.NoError(t, err)
			assert.True(t, VerifyProof(LeafHash(moves[i]), proof, root), "n=%d i=%d", n, i)
		}
	}
}

func TestProof_RejectsForeignLeaf(t *testing.T) {
	moves := makeMoves(6)
	root, _ := Digest(moves)
	proof, err := Proof(moves, 2)
	require.NoError(t, err)

	other := moves[2]
	other.Move.To = "a8"
	assert.False(t, VerifyProof(LeafHash(other), proof, root))
}

func TestProof_OutOfRange(t *testing.T) {
	_, err := Proof(makeMoves(2), 2)
	assert.ErrorIs(t, err, ErrProofIndex)
	_, err = Proof(nil, 0)
	assert.ErrorIs(t, err, ErrProofIndex)
}

func TestParseRoot(t *testing.T) {
	root, _ := Digest(makeMoves(2))

	parsed, err := ParseRoot(root.Hex())
	require.NoError(t, err)
	assert.Equal(t, root, parsed)

	_, err = ParseRoot("zz")
	assert.Error(t, err)
	_, err = ParseRoot("abcd")
	assert.Error(t, err)
}
