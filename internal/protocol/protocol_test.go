package protocol

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chesschain-go/internal/model"
)

func TestDecode_Move(t *testing.T) {
	raw := `{"type":"move","payload":{"session_id":"s1","move":{"from":"e7","to":"e8","promotion":"q"},"terminal_label":"checkmate","signature":"abcd"}}`

	msg, err := Decode([]byte(raw))
	require.NoError(t, err)

	mv, ok := msg.(*SubmitMove)
	require.True(t, ok, "expected *SubmitMove, got %T", msg)
	assert.Equal(t, "s1", mv.SessionID)
	assert.Equal(t, model.Move{From: "e7", To: "e8", Promotion: "q"}, mv.Move.ModelMove())
	assert.Equal(t, "checkmate", mv.TerminalLabel)
	assert.Equal(t, "abcd", mv.Signature)
}

func TestDecode_EmptyPayloads(t *testing.T) {
	for _, raw := range []string{`{"type":"joinQueue"}`, `{"type":"joinQueue","payload":null}`, `{"type":"joinQueue","payload":{}}`} {
		msg, err := Decode([]byte(raw))
		require.NoError(t, err, raw)
		assert.IsType(t, &JoinQueue{}, msg)
	}

	msg, err := Decode([]byte(`{"type":"ping"}`))
	require.NoError(t, err)
	assert.IsType(t, &Ping{}, msg)
}

func TestDecode_AllInboundTypes(t *testing.T) {
	tests := []struct {
		raw  string
		want Inbound
	}{
		{`{"type":"authenticate","payload":{"identity":"u1","public_key":"k"}}`, &Authenticate{Identity: "u1", PublicKey: "k"}},
		{`{"type":"resign","payload":{"session_id":"s"}}`, &Resign{SessionID: "s"}},
		{`{"type":"drawOffer","payload":{"session_id":"s"}}`, &OfferDraw{SessionID: "s"}},
		{`{"type":"drawResponse","payload":{"session_id":"s","accepted":true}}`, &DrawResponse{SessionID: "s", Accepted: true}},
		{`{"type":"getGameState","payload":{"session_id":"s"}}`, &GetGameState{SessionID: "s"}},
	}

	for _, tt := range tests {
		got, err := Decode([]byte(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, model.ErrMalformedMessage},
		{"missing type", `{"payload":{}}`, model.ErrMalformedMessage},
		{"unknown type", `{"type":"teleport"}`, model.ErrUnknownMessageType},
		{"bad payload", `{"type":"drawResponse","payload":{"accepted":"yes"}}`, model.ErrMalformedMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncode_Envelope(t *testing.T) {
	data, err := Encode(DrawOffered{SessionID: "s1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"drawOffer","payload":{"session_id":"s1"}}`, string(data))

	data, err = Encode(Pong{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"pong","payload":{}}`, string(data))
}

func TestEncodeRequest_RoundTrip(t *testing.T) {
	data, err := EncodeRequest(SubmitMove{SessionID: "s1", Move: Move{From: "e2", To: "e4"}, Signature: "ab"})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, &SubmitMove{SessionID: "s1", Move: Move{From: "e2", To: "e4"}, Signature: "ab"}, msg)
}

func TestDecodeOutbound(t *testing.T) {
	data, err := Encode(MoveAccepted{SessionID: "s1", Sequence: 3, Verification: "verified"})
	require.NoError(t, err)

	msg, err := DecodeOutbound(data)
	require.NoError(t, err)
	assert.Equal(t, &MoveAccepted{SessionID: "s1", Sequence: 3, Verification: "verified"}, msg)

	// drawOffer is the outbound notice on the receiving side
	msg, err = DecodeOutbound([]byte(`{"type":"drawOffer","payload":{"session_id":"s2"}}`))
	require.NoError(t, err)
	assert.Equal(t, &DrawOffered{SessionID: "s2"}, msg)

	_, err = DecodeOutbound([]byte(`{"type":"joinQueue"}`))
	assert.ErrorIs(t, err, model.ErrUnknownMessageType)

	_, err = DecodeOutbound([]byte(`nope`))
	assert.ErrorIs(t, err, model.ErrMalformedMessage)
}

func TestResultFromModel(t *testing.T) {
	win := ResultFromModel(&model.Result{Winner: model.SideBlack, Reason: model.ReasonResignation})
	require.NotNil(t, win.Winner)
	assert.Equal(t, "black", *win.Winner)

	draw := ResultFromModel(&model.Result{Reason: model.ReasonDrawAgreement})
	data, err := json.Marshal(draw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"winner":null,"reason":"draw_agreement"}`, string(data))
}

func TestGameStateFromSnapshot(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := &model.StateSnapshot{
		SessionID:        "s1",
		Side:             model.SideBlack,
		Opponent:         "u1",
		OpponentMetadata: model.ParticipantMetadata{DisplayName: "Alice", Rating: 1300, Wins: 2},
		Status:           model.SessionStatusActive,
		Moves: []model.MoveRecord{{
			Sequence:     0,
			Side:         model.SideWhite,
			Move:         model.Move{From: "e2", To: "e4"},
			Signature:    []byte{0xde, 0xad},
			Verification: model.VerificationVerified,
			Timestamp:    ts,
		}},
		Turn:             model.SideBlack,
		DrawOfferVisible: true,
	}

	gs := GameStateFromSnapshot(snap)
	assert.Equal(t, "black", gs.Side)
	assert.Equal(t, "Alice", gs.Opponent.DisplayName)
	assert.Nil(t, gs.Result)
	require.Len(t, gs.MoveLog, 1)
	assert.Equal(t, "dead", gs.MoveLog[0].Signature)
	assert.Equal(t, "verified", gs.MoveLog[0].Verification)
	assert.True(t, gs.DrawOfferVisible)
}

func TestErrorFromErr(t *testing.T) {
	tests := []struct {
		err  error
		code string
	}{
		{model.ErrUnauthenticated, CodeUnauthenticated},
		{model.ErrSessionNotFound, CodeSessionNotFound},
		{fmt.Errorf("wrapped: %w", model.ErrNotAParticipant), CodeNotAParticipant},
		{model.ErrMalformedMove, CodeMalformedMove},
		{model.ErrInvalidSignature, CodeInvalidSignature},
		{model.ErrMatchAlreadyCompleted, CodeMatchAlreadyCompleted},
		{model.ErrNoActiveOffer, CodeNoActiveOffer},
		{model.ErrCannotRespondToOwnOffer, CodeCannotRespondToOwnOffer},
		{model.ErrMatchNotFound, CodeMatchNotFound},
		{model.ErrInvariantViolation, CodeInvariantViolation},
		{fmt.Errorf("boom"), CodeInternalError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.code, ErrorFromErr(tt.err).Code, tt.err.Error())
	}
}

func TestErrorFromErr_TurnError(t *testing.T) {
	err := fmt.Errorf("submit: %w", &model.TurnError{Side: model.SideBlack, ToMove: model.SideWhite, MoveCount: 2})

	got := ErrorFromErr(err)
	assert.Equal(t, CodeOutOfTurn, got.Code)
	assert.Equal(t, "black", got.Side)
	require.NotNil(t, got.MoveCount)
	assert.Equal(t, 2, *got.MoveCount)
}
