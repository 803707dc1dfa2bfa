package e2e_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chesschain-go/internal/api/response"
	"github.com/mcoot/chesschain-go/internal/factory"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

// match connects two clients and waits until the sweeper pairs them. The
// first client queues first and so plays white.
func match(t *testing.T, ts *testServer) (white, black *wsClient, sessionID string) {
	t.Helper()

	white = dialClient(t, ts.addr, "alice")
	black = dialClient(t, ts.addr, "bob")
	white.authenticate()
	black.authenticate()

	white.send(protocol.JoinQueue{})
	expect[*protocol.QueueJoined](white)
	black.send(protocol.JoinQueue{})
	expect[*protocol.QueueJoined](black)

	wf := expect[*protocol.MatchFound](white)
	bf := expect[*protocol.MatchFound](black)
	require.Equal(t, "white", wf.Side)
	require.Equal(t, "black", bf.Side)
	require.Equal(t, wf.SessionID, bf.SessionID)
	assert.Equal(t, "bob", wf.Opponent.ID)
	assert.Equal(t, "alice", bf.Opponent.ID)
	assert.Equal(t, "white", wf.FirstMove)

	return white, black, wf.SessionID
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, out any) int {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestE2E_ResignAfterOpening(t *testing.T) {
	ts := startTestServer(t, factory.Config{})
	defer ts.shutdown()

	white, black, id := match(t, ts)

	white.move(id, 0, "e2", "e4", "")
	accepted := expect[*protocol.MoveAccepted](white)
	assert.Equal(t, 0, accepted.Sequence)
	assert.Equal(t, "verified", accepted.Verification)
	relayed := expect[*protocol.OpponentMove](black)
	assert.Equal(t, protocol.Move{From: "e2", To: "e4"}, relayed.Move)

	black.move(id, 1, "e7", "e5", "")
	expect[*protocol.MoveAccepted](black)
	expect[*protocol.OpponentMove](white)

	white.send(protocol.Resign{SessionID: id})
	confirmed := expect[*protocol.ResignConfirmed](white)
	require.NotNil(t, confirmed.Result.Winner)
	assert.Equal(t, "black", *confirmed.Result.Winner)
	assert.Equal(t, "resignation", confirmed.Result.Reason)

	over := expect[*protocol.GameOver](black)
	require.NotNil(t, over.Result.Winner)
	assert.Equal(t, "black", *over.Result.Winner)
	assert.Equal(t, "resignation", over.Result.Reason)

	// further moves are rejected
	black.move(id, 2, "g8", "f6", "")
	rejected := expect[*protocol.Error](black)
	assert.Equal(t, protocol.CodeMatchAlreadyCompleted, rejected.Code)

	var sess response.Session
	require.Equal(t, http.StatusOK, getJSON(t, ts.addr+"/api/v1/sessions/"+id, &sess))
	assert.Equal(t, "completed", sess.Status)
	assert.Len(t, sess.Moves, 2)
	require.NotNil(t, sess.Result)
	assert.Equal(t, "resignation", sess.Result.Reason)

	// the archive hand-off runs in the background
	require.Eventually(t, func() bool {
		_, err := ts.app.Storage.FetchArchivedSession(context.Background(), model.SessionID(id))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
	meta, err := ts.app.Storage.FetchParticipantMetadata(context.Background(), []model.ParticipantID{"alice", "bob"})
	require.NoError(t, err)
	assert.Equal(t, 1, meta["bob"].Wins)
	assert.Equal(t, 1, meta["alice"].Losses)
	assert.Greater(t, meta["bob"].Rating, meta["alice"].Rating)
}

func TestE2E_DrawByAgreement(t *testing.T) {
	ts := startTestServer(t, factory.Config{})
	defer ts.shutdown()

	white, black, id := match(t, ts)

	white.send(protocol.OfferDraw{SessionID: id})
	expect[*protocol.DrawOfferSent](white)
	expect[*protocol.DrawOffered](black)

	// the offerer cannot answer their own offer
	white.send(protocol.DrawResponse{SessionID: id, Accepted: true})
	own := expect[*protocol.Error](white)
	assert.Equal(t, protocol.CodeCannotRespondToOwnOffer, own.Code)

	black.send(protocol.DrawResponse{SessionID: id, Accepted: false})
	expect[*protocol.DrawDeclined](white)

	black.send(protocol.OfferDraw{SessionID: id})
	expect[*protocol.DrawOfferSent](black)
	expect[*protocol.DrawOffered](white)
	white.send(protocol.DrawResponse{SessionID: id, Accepted: true})

	for _, c := range []*wsClient{white, black} {
		over := expect[*protocol.GameOver](c)
		assert.Nil(t, over.Result.Winner)
		assert.Equal(t, "draw_agreement", over.Result.Reason)
	}
}

func TestE2E_OutOfTurnAndReconnect(t *testing.T) {
	ts := startTestServer(t, factory.Config{})
	defer ts.shutdown()

	white, black, id := match(t, ts)

	black.move(id, 0, "e7", "e5", "")
	outOfTurn := expect[*protocol.Error](black)
	assert.Equal(t, protocol.CodeOutOfTurn, outOfTurn.Code)
	assert.Equal(t, "black", outOfTurn.Side)
	require.NotNil(t, outOfTurn.MoveCount)
	assert.Equal(t, 0, *outOfTurn.MoveCount)

	white.move(id, 0, "d2", "d4", "")
	expect[*protocol.MoveAccepted](white)
	expect[*protocol.OpponentMove](black)

	// black drops; white is told
	require.NoError(t, black.conn.Close())
	require.NoError(t, white.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := white.conn.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DecodeOutbound(data)
	require.NoError(t, err)
	presence, ok := msg.(*protocol.OpponentConnection)
	require.True(t, ok, "got %s", data)
	assert.False(t, presence.Connected)

	// black returns on a new connection and resynchronises
	again := dialClient(t, ts.addr, "bob")
	again.priv, again.publicKey = black.priv, black.publicKey
	again.authenticate()
	again.send(protocol.GetGameState{SessionID: id})
	state := expect[*protocol.GameState](again)
	assert.Equal(t, "black", state.Side)
	assert.Equal(t, "active", state.Status)
	assert.Equal(t, "black", state.Turn)
	assert.True(t, state.OpponentConnected)
	require.Len(t, state.MoveLog, 1)
	assert.Equal(t, "d2", state.MoveLog[0].Move.From)

	again.move(id, 1, "d7", "d5", "")
	accepted := expect[*protocol.MoveAccepted](again)
	assert.Equal(t, 1, accepted.Sequence)
}

func TestE2E_StrictSignaturesAndIntegrity(t *testing.T) {
	ts := startTestServer(t, factory.Config{SignaturePolicy: signature.PolicyStrict})
	defer ts.shutdown()

	white, black, id := match(t, ts)

	// unsigned moves are refused under the strict policy
	white.send(protocol.SubmitMove{SessionID: id, Move: protocol.Move{From: "f2", To: "f3"}})
	unsigned := expect[*protocol.Error](white)
	assert.Equal(t, protocol.CodeInvalidSignature, unsigned.Code)

	moves := []struct {
		mover, other *wsClient
		from, to     string
		label        model.TerminalLabel
	}{
		{white, black, "f2", "f3", ""},
		{black, white, "e7", "e5", ""},
		{white, black, "g2", "g4", ""},
		{black, white, "d8", "h4", model.TerminalCheckmate},
	}
	for i, m := range moves {
		m.mover.move(id, i, m.from, m.to, m.label)
		expect[*protocol.MoveAccepted](m.mover)
		expect[*protocol.OpponentMove](m.other)
	}

	over := expect[*protocol.GameOver](white)
	require.NotNil(t, over.Result.Winner)
	assert.Equal(t, "black", *over.Result.Winner)
	assert.Equal(t, "checkmate", over.Result.Reason)

	var sess response.Session
	require.Equal(t, http.StatusOK, getJSON(t, ts.addr+"/api/v1/sessions/"+id, &sess))
	require.Len(t, sess.Moves, 4)
	for _, m := range sess.Moves {
		assert.Equal(t, "verified", m.Verification)
		assert.NotEmpty(t, m.Signature)
	}
	require.NotEmpty(t, sess.Digest)

	var verdict response.DigestVerification
	require.Equal(t, http.StatusOK, postJSON(t, ts.addr+"/api/v1/sessions/"+id+"/verify", map[string]string{"root": sess.Digest}, &verdict))
	assert.Equal(t, "match", verdict.Outcome)

	var proof response.InclusionProof
	require.Equal(t, http.StatusOK, getJSON(t, fmt.Sprintf("%s/api/v1/sessions/%s/moves/%d/proof", ts.addr, id, 2), &proof))
	assert.Equal(t, sess.Digest, proof.Root)
	assert.Len(t, proof.Proof, 2)

	// a signature from the log checks out against the verification endpoint
	var sig response.SignatureVerification
	require.Equal(t, http.StatusOK, postJSON(t, ts.addr+"/api/v1/signatures/verify", map[string]any{
		"move":       map[string]any{"session_id": id, "sequence": 3, "from": "d8", "to": "h4"},
		"signature":  sess.Moves[3].Signature,
		"public_key": black.publicKey,
	}, &sig))
	assert.True(t, sig.Valid)
}
