package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) EnsureParticipantsExist(ctx context.Context, ids []model.ParticipantID) error {
	if len(ids) == 0 {
		return nil
	}

	// SETNX leaves existing records untouched
	pipe := s.client.Pipeline()
	for _, id := range ids {
		data, err := json.Marshal(model.PlaceholderMetadata(id))
		if err != nil {
			return err
		}
		pipe.SetNX(ctx, participantKey(id), data, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ensure participants: %w", err)
	}
	return nil
}

func (s *Storage) FetchParticipantMetadata(ctx context.Context, ids []model.ParticipantID) (map[model.ParticipantID]model.ParticipantMetadata, error) {
	result := make(map[model.ParticipantID]model.ParticipantMetadata, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = participantKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch participant metadata: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// nil for missing keys
			continue
		}
		var meta model.ParticipantMetadata
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("decode participant %s: %w", ids[i], err)
		}
		result[ids[i]] = meta
	}
	return result, nil
}

func (s *Storage) SaveParticipantMetadata(ctx context.Context, id model.ParticipantID, meta model.ParticipantMetadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, participantKey(id), data, 0).Err()
}

// Archive operations

func (s *Storage) SaveMoves(ctx context.Context, sessionID model.SessionID, moves []model.MoveRecord) error {
	key := movesKey(sessionID)

	// Replace the list atomically
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(moves) > 0 {
		members := make([]interface{}, len(moves))
		for i, m := range moves {
			data, err := json.Marshal(m)
			if err != nil {
				return err
			}
			members[i] = data
		}
		pipe.RPush(ctx, key, members...)
		if s.cfg.ArchiveTTL > 0 {
			pipe.Expire(ctx, key, s.cfg.ArchiveTTL)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save moves: %w", err)
	}
	return nil
}

func (s *Storage) SaveCompletedSession(ctx context.Context, archived *model.ArchivedSession) error {
	data, err := json.Marshal(archived)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, sessionKey(archived.Session.ID), data, s.cfg.ArchiveTTL).Err(); err != nil {
		return fmt.Errorf("save completed session: %w", err)
	}
	return nil
}

func (s *Storage) FetchArchivedSession(ctx context.Context, id model.SessionID) (*model.ArchivedSession, error) {
	pipe := s.client.Pipeline()
	sessionCmd := pipe.Get(ctx, sessionKey(id))
	movesCmd := pipe.LRange(ctx, movesKey(id), 0, -1)
	_, _ = pipe.Exec(ctx)

	data, err := sessionCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrArchivedSessionNotFound
		}
		return nil, fmt.Errorf("fetch archived session: %w", err)
	}

	var archived model.ArchivedSession
	if err := json.Unmarshal(data, &archived); err != nil {
		return nil, fmt.Errorf("decode archived session: %w", err)
	}

	rawMoves, err := movesCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("fetch moves: %w", err)
	}
	if len(rawMoves) > 0 {
		moves := make([]model.MoveRecord, len(rawMoves))
		for i, raw := range rawMoves {
			if err := json.Unmarshal([]byte(raw), &moves[i]); err != nil {
				return nil, fmt.Errorf("decode move %d: %w", i, err)
			}
		}
		archived.Session.Moves = moves
	}
	return &archived, nil
}
