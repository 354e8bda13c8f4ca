package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	DefaultRedisPrefix = "syncplayer:room:"

	redisMaxRetries = 32
)

// redisRecord is the whole room as stored under one key.
type redisRecord struct {
	Offer      []byte   `msgpack:"o,omitempty"`
	Answer     []byte   `msgpack:"a,omitempty"`
	Candidates [][]byte `msgpack:"c"`
}

// RedisStore keeps every room as a single msgpack record. Writes are
// read-modify-write under WATCH and refresh the key's TTL, so Redis itself
// applies the retention policy.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisOptions configures NewRedisStore.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisStore dials Redis and verifies the connection.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStoreFromClient(rdb, opts.Prefix, opts.TTL), nil
}

// NewRedisStoreFromClient wraps an existing client. A zero ttl keeps rooms
// until they are cleared.
func NewRedisStoreFromClient(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(roomID string) string {
	return s.prefix + roomID
}

func (s *RedisStore) Get(ctx context.Context, roomID string) (*Room, error) {
	if err := checkRoom(roomID); err != nil {
		return nil, err
	}
	rec, err := s.load(ctx, s.rdb, roomID)
	if err != nil {
		return nil, unavailable("get", roomID, err)
	}
	return rec.room(), nil
}

func (s *RedisStore) SetOffer(ctx context.Context, roomID string, offer json.RawMessage) error {
	if err := checkPayload(roomID, offer); err != nil {
		return err
	}
	return s.update(ctx, "set offer", roomID, func(rec *redisRecord) {
		rec.Offer = []byte(offer)
	})
}

func (s *RedisStore) SetAnswer(ctx context.Context, roomID string, answer json.RawMessage) error {
	if err := checkPayload(roomID, answer); err != nil {
		return err
	}
	return s.update(ctx, "set answer", roomID, func(rec *redisRecord) {
		rec.Answer = []byte(answer)
	})
}

func (s *RedisStore) AppendCandidate(ctx context.Context, roomID string, candidate json.RawMessage) error {
	if err := checkPayload(roomID, candidate); err != nil {
		return err
	}
	return s.update(ctx, "append candidate", roomID, func(rec *redisRecord) {
		rec.Candidates = append(rec.Candidates, []byte(candidate))
	})
}

func (s *RedisStore) Clear(ctx context.Context, roomID string) error {
	if err := checkRoom(roomID); err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.key(roomID)).Err(); err != nil {
		return unavailable("clear", roomID, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c redisGetter, roomID string) (*redisRecord, error) {
	data, err := c.Get(ctx, s.key(roomID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &redisRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	var rec redisRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode room record: %w", err)
	}
	return &rec, nil
}

// update applies fn to the stored record inside an optimistic transaction,
// retrying when another writer touched the key first.
func (s *RedisStore) update(ctx context.Context, op, roomID string, fn func(*redisRecord)) error {
	key := s.key(roomID)
	txf := func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, roomID)
		if err != nil {
			return err
		}
		fn(rec)
		data, err := msgpack.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode room record: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for range redisMaxRetries {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return unavailable(op, roomID, err)
	}
	return unavailable(op, roomID, errors.New("too many concurrent writers"))
}

func (r *redisRecord) room() *Room {
	room := &Room{
		Offer:      rawOrNil(r.Offer),
		Answer:     rawOrNil(r.Answer),
		Candidates: make([]json.RawMessage, 0, len(r.Candidates)),
	}
	for _, c := range r.Candidates {
		room.Candidates = append(room.Candidates, json.RawMessage(c))
	}
	return room
}
