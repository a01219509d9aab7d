package quotes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Key schema, mirroring the upstream broker's own Redis namespacing:
//
//	orderflow:quotes:{ticker}          - sorted set, score = timestamp ms, member = encoded quote
//	orderflow:latest:{ticker}          - hash, fast-path latest quote
//	orderflow:metrics:{ticker}:{slot}  - string blob, TTL set by SET
//	orderflow:levels:{ticker}:{side}   - string blob, TTL set by SET
//	orderflow:patterns:{ticker}        - sorted set, score = timestamp ms, member = encoded pattern

// RedisStore realizes Store atop a sorted-set-capable KV service.
type RedisStore struct {
	rdb *redis.Client
}

// RedisConfig parameterises the Redis connection.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// NewRedisStore dials Redis, verifies connectivity with PING, and returns
// a Store realization backed by it.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreUnavailable, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func quotesKey(ticker string) string  { return "orderflow:quotes:" + ticker }
func latestKey(ticker string) string  { return "orderflow:latest:" + ticker }
func metricsKey(ticker string, slot Slot) string {
	return "orderflow:metrics:" + ticker + ":" + string(slot)
}
func levelsKey(ticker string, slot Slot) string {
	return "orderflow:levels:" + ticker + ":" + string(slot)
}
func patternsKey(ticker string) string { return "orderflow:patterns:" + ticker }

func encodeQuote(q Quote) string {
	return strings.Join([]string{
		strconv.FormatInt(q.TimestampMS, 10),
		q.BidPrice.String(),
		q.AskPrice.String(),
		strconv.FormatInt(q.BidSize, 10),
		strconv.FormatInt(q.AskSize, 10),
	}, "|")
}

func decodeQuote(ticker, member string) (Quote, error) {
	parts := strings.Split(member, "|")
	if len(parts) != 5 {
		return Quote{}, fmt.Errorf("quotes: malformed redis member %q", member)
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Quote{}, err
	}
	bid, err := decimal.NewFromString(parts[1])
	if err != nil {
		return Quote{}, err
	}
	ask, err := decimal.NewFromString(parts[2])
	if err != nil {
		return Quote{}, err
	}
	bidSize, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Quote{}, err
	}
	askSize, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		Ticker:      ticker,
		TimestampMS: ts,
		BidPrice:    bid,
		AskPrice:    ask,
		BidSize:     bidSize,
		AskSize:     askSize,
	}, nil
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, q Quote) error {
	ticker, err := NormalizeTicker(q.Ticker)
	if err != nil {
		return err
	}
	q.Ticker = ticker

	key := quotesKey(ticker)
	member := encodeQuote(q)

	pipe := s.rdb.TxPipeline()
	// Equal-timestamp entries must overwrite: remove any existing member
	// at this exact score first.
	pipe.ZRemRangeByScore(ctx, key, formatScore(q.TimestampMS), formatScore(q.TimestampMS))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(q.TimestampMS), Member: member})
	pipe.HSet(ctx, latestKey(ticker), map[string]interface{}{
		"ts":       q.TimestampMS,
		"bid":      q.BidPrice.String(),
		"ask":      q.AskPrice.String(),
		"bidSize":  q.BidSize,
		"askSize":  q.AskSize,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append %s: %v", ErrStoreUnavailable, ticker, err)
	}
	return nil
}

func formatScore(ms int64) string { return strconv.FormatInt(ms, 10) }

// Latest implements Store.
func (s *RedisStore) Latest(ctx context.Context, ticker string) (Quote, error) {
	vals, err := s.rdb.HGetAll(ctx, latestKey(ticker)).Result()
	if err != nil {
		return Quote{}, fmt.Errorf("%w: latest %s: %v", ErrStoreUnavailable, ticker, err)
	}
	if len(vals) == 0 {
		return Quote{}, ErrNotFound
	}
	ts, _ := strconv.ParseInt(vals["ts"], 10, 64)
	bid, err := decimal.NewFromString(vals["bid"])
	if err != nil {
		return Quote{}, fmt.Errorf("%w: parse bid: %v", ErrStoreUnavailable, err)
	}
	ask, err := decimal.NewFromString(vals["ask"])
	if err != nil {
		return Quote{}, fmt.Errorf("%w: parse ask: %v", ErrStoreUnavailable, err)
	}
	bidSize, _ := strconv.ParseInt(vals["bidSize"], 10, 64)
	askSize, _ := strconv.ParseInt(vals["askSize"], 10, 64)
	return Quote{Ticker: ticker, TimestampMS: ts, BidPrice: bid, AskPrice: ask, BidSize: bidSize, AskSize: askSize}, nil
}

// Range implements Store.
func (s *RedisStore) Range(ctx context.Context, ticker string, fromMS, toMS int64) (Window, error) {
	members, err := s.rdb.ZRangeByScore(ctx, quotesKey(ticker), &redis.ZRangeBy{
		Min: formatScore(fromMS),
		Max: formatScore(toMS),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: range %s: %v", ErrStoreUnavailable, ticker, err)
	}
	out := make(Window, 0, len(members))
	for _, m := range members {
		q, err := decodeQuote(ticker, m)
		if err != nil {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// Prune implements Store.
func (s *RedisStore) Prune(ctx context.Context, ticker string, olderThanMS int64) error {
	if err := s.rdb.ZRemRangeByScore(ctx, quotesKey(ticker), "-inf", fmt.Sprintf("(%d", olderThanMS)).Err(); err != nil {
		return fmt.Errorf("%w: prune %s: %v", ErrStoreUnavailable, ticker, err)
	}
	return nil
}

// Tickers implements Store.
func (s *RedisStore) Tickers(ctx context.Context) ([]string, error) {
	var tickers []string
	iter := s.rdb.Scan(ctx, 0, "orderflow:quotes:*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		parts := strings.SplitN(key, ":", 3)
		if len(parts) == 3 {
			tickers = append(tickers, parts[2])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan tickers: %v", ErrStoreUnavailable, err)
	}
	return tickers, nil
}

// PutSlot implements Store.
func (s *RedisStore) PutSlot(ctx context.Context, ticker string, slot Slot, value []byte, ttl time.Duration) error {
	key := slotKey(ticker, slot)
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: put slot %s/%s: %v", ErrStoreUnavailable, ticker, slot, err)
	}
	return nil
}

// GetSlot implements Store.
func (s *RedisStore) GetSlot(ctx context.Context, ticker string, slot Slot) ([]byte, error) {
	val, err := s.rdb.Get(ctx, slotKey(ticker, slot)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get slot %s/%s: %v", ErrStoreUnavailable, ticker, slot, err)
	}
	return val, nil
}

func slotKey(ticker string, slot Slot) string {
	switch slot {
	case SlotLevelsBid, SlotLevelsAsk:
		return levelsKey(ticker, slot)
	default:
		return metricsKey(ticker, slot)
	}
}

// AppendPattern implements Store.
func (s *RedisStore) AppendPattern(ctx context.Context, ticker string, value []byte, timestampMS int64, ttl time.Duration) error {
	key := patternsKey(ticker)
	pipe := s.rdb.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(timestampMS), Member: value})
	cutoff := time.Now().Add(-ttl).UnixMilli()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("(%d", cutoff))
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append pattern %s: %v", ErrStoreUnavailable, ticker, err)
	}
	return nil
}

// RangePatterns implements Store.
func (s *RedisStore) RangePatterns(ctx context.Context, ticker string, fromMS, toMS int64) ([][]byte, error) {
	members, err := s.rdb.ZRangeByScore(ctx, patternsKey(ticker), &redis.ZRangeBy{
		Min: formatScore(fromMS),
		Max: formatScore(toMS),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: range patterns %s: %v", ErrStoreUnavailable, ticker, err)
	}
	out := make([][]byte, len(members))
	for i, m := range members {
		out[i] = []byte(m)
	}
	return out, nil
}

// PrunePatterns implements Store.
func (s *RedisStore) PrunePatterns(ctx context.Context, ticker string, olderThanMS int64) error {
	if err := s.rdb.ZRemRangeByScore(ctx, patternsKey(ticker), "-inf", fmt.Sprintf("(%d", olderThanMS)).Err(); err != nil {
		return fmt.Errorf("%w: prune patterns %s: %v", ErrStoreUnavailable, ticker, err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

var _ Store = (*RedisStore)(nil)
