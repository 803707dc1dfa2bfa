// Package sqlite provides a SQLite-backed archive of completed sessions.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/storage"
)

//go:embed schema.sql
var schema string

// Store persists participants and archived sessions in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Ensure Store implements the interface
var _ storage.Storage = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// EnsureParticipantsExist inserts placeholder rows for unknown identities.
func (s *Store) EnsureParticipantsExist(ctx context.Context, ids []model.ParticipantID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		meta := model.PlaceholderMetadata(id)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO participants (id, display_name, rating) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			string(id), meta.DisplayName, meta.Rating,
		); err != nil {
			return fmt.Errorf("ensure participant %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit participants: %w", err)
	}
	return nil
}

// FetchParticipantMetadata returns metadata for the identities that have a row.
func (s *Store) FetchParticipantMetadata(ctx context.Context, ids []model.ParticipantID) (map[model.ParticipantID]model.ParticipantMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := make(map[model.ParticipantID]model.ParticipantMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, display_name, rating, wins, losses, draws FROM participants WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			meta model.ParticipantMetadata
		)
		if err := rows.Scan(&id, &meta.DisplayName, &meta.Rating, &meta.Wins, &meta.Losses, &meta.Draws); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		result[model.ParticipantID(id)] = meta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return result, nil
}

// SaveParticipantMetadata upserts one participant row.
func (s *Store) SaveParticipantMetadata(ctx context.Context, id model.ParticipantID, meta model.ParticipantMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO participants (id, display_name, rating, wins, losses, draws) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   display_name = excluded.display_name,
		   rating = excluded.rating,
		   wins = excluded.wins,
		   losses = excluded.losses,
		   draws = excluded.draws`,
		string(id), meta.DisplayName, meta.Rating, meta.Wins, meta.Losses, meta.Draws,
	)
	if err != nil {
		return fmt.Errorf("save participant %s: %w", id, err)
	}
	return nil
}

// SaveMoves replaces the stored move log of a session.
func (s *Store) SaveMoves(ctx context.Context, sessionID model.SessionID, moves []model.MoveRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM moves WHERE session_id = ?`, string(sessionID)); err != nil {
		return fmt.Errorf("clear moves: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO moves (
		   session_id, sequence, side, participant_id, from_square, to_square,
		   promotion, terminal_label, position_digest, signature, verification, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare move insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range moves {
		if _, err := stmt.ExecContext(ctx,
			string(sessionID),
			m.Sequence,
			string(m.Side),
			string(m.Participant),
			m.Move.From,
			m.Move.To,
			m.Move.Promotion,
			string(m.TerminalLabel),
			m.PositionDigest,
			m.Signature,
			string(m.Verification),
			toMillis(m.Timestamp),
		); err != nil {
			return fmt.Errorf("insert move %d: %w", m.Sequence, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit moves: %w", err)
	}
	return nil
}

// SaveCompletedSession upserts the session row. Moves are saved separately.
func (s *Store) SaveCompletedSession(ctx context.Context, archived *model.ArchivedSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sess := archived.Session
	var winner, reason string
	if sess.Result != nil {
		winner = string(sess.Result.Winner)
		reason = string(sess.Result.Reason)
	}
	var completedAt sql.NullInt64
	if sess.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: toMillis(*sess.CompletedAt), Valid: true}
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (
		   id, white_id, black_id, white_name, white_rating, black_name, black_rating,
		   status, winner, reason, digest, created_at, completed_at, archived_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   winner = excluded.winner,
		   reason = excluded.reason,
		   digest = excluded.digest,
		   completed_at = excluded.completed_at,
		   archived_at = excluded.archived_at`,
		string(sess.ID),
		string(sess.White.Participant),
		string(sess.Black.Participant),
		sess.White.Metadata.DisplayName,
		sess.White.Metadata.Rating,
		sess.Black.Metadata.DisplayName,
		sess.Black.Metadata.Rating,
		string(sess.Status),
		winner,
		reason,
		archived.Digest,
		toMillis(sess.CreatedAt),
		completedAt,
		toMillis(archived.ArchivedAt),
	)
	if err != nil {
		return fmt.Errorf("save completed session: %w", err)
	}
	return nil
}

// FetchArchivedSession loads a session row and its moves.
func (s *Store) FetchArchivedSession(ctx context.Context, id model.SessionID) (*model.ArchivedSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		archived    model.ArchivedSession
		sess        = &archived.Session
		sessID      string
		whiteID     string
		blackID     string
		status      string
		winner      string
		reason      string
		createdAt   int64
		completedAt sql.NullInt64
		archivedAt  int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, white_id, black_id, white_name, white_rating, black_name, black_rating,
		        status, winner, reason, digest, created_at, completed_at, archived_at
		   FROM sessions WHERE id = ?`,
		string(id),
	).Scan(
		&sessID, &whiteID, &blackID,
		&sess.White.Metadata.DisplayName, &sess.White.Metadata.Rating,
		&sess.Black.Metadata.DisplayName, &sess.Black.Metadata.Rating,
		&status, &winner, &reason, &archived.Digest,
		&createdAt, &completedAt, &archivedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrArchivedSessionNotFound
		}
		return nil, fmt.Errorf("fetch archived session: %w", err)
	}

	sess.ID = model.SessionID(sessID)
	sess.White.Participant = model.ParticipantID(whiteID)
	sess.White.MetadataFetched = true
	sess.Black.Participant = model.ParticipantID(blackID)
	sess.Black.MetadataFetched = true
	sess.Status = model.SessionStatus(status)
	if reason != "" {
		sess.Result = &model.Result{Winner: model.Side(winner), Reason: model.ResultReason(reason)}
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = sess.CreatedAt
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		sess.CompletedAt = &t
		sess.UpdatedAt = t
	}
	archived.ArchivedAt = fromMillis(archivedAt)

	moves, err := s.fetchMoves(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.Moves = moves
	return &archived, nil
}

func (s *Store) fetchMoves(ctx context.Context, id model.SessionID) ([]model.MoveRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sequence, side, participant_id, from_square, to_square, promotion,
		        terminal_label, position_digest, signature, verification, created_at
		   FROM moves WHERE session_id = ? ORDER BY sequence`,
		string(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	defer rows.Close()

	var moves []model.MoveRecord
	for rows.Next() {
		var (
			m             model.MoveRecord
			side          string
			participant   string
			terminalLabel string
			verification  string
			createdAt     int64
		)
		if err := rows.Scan(
			&m.Sequence, &side, &participant, &m.Move.From, &m.Move.To, &m.Move.Promotion,
			&terminalLabel, &m.PositionDigest, &m.Signature, &verification, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		m.Side = model.Side(side)
		m.Participant = model.ParticipantID(participant)
		m.TerminalLabel = model.TerminalLabel(terminalLabel)
		m.Verification = model.VerificationOutcome(verification)
		m.Timestamp = fromMillis(createdAt)
		moves = append(moves, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moves: %w", err)
	}
	return moves, nil
}
