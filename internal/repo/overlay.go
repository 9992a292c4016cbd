package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/edirooss/rtsp2hls/internal/domain/overlay"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrOverlayNotFound = errors.New("overlay not found")

// OverlayStore persists overlays. List returns newest first.
type OverlayStore interface {
	Create(ctx context.Context, o *overlay.Overlay) error
	Get(ctx context.Context, id string) (*overlay.Overlay, error)
	List(ctx context.Context) ([]*overlay.Overlay, error)
	Update(ctx context.Context, o *overlay.Overlay) error
	Delete(ctx context.Context, id string) error
}

const (
	overlayKeyPrefix = "rtsp2hls:overlay:"
	overlayIDsKey    = "rtsp2hls:overlays" // ZSET id → created_at (unix ms)
)

func overlayKey(id string) string { return overlayKeyPrefix + id }

// OverlayRepository provides Redis-backed persistence for overlays.
type OverlayRepository struct {
	client *RedisClient
	log    *zap.Logger
}

var _ OverlayStore = (*OverlayRepository)(nil)

func NewOverlayRepository(log *zap.Logger, client *RedisClient) *OverlayRepository {
	return &OverlayRepository{
		log:    log.Named("overlays"),
		client: client,
	}
}

// Create persists o and indexes it by creation time.
func (r *OverlayRepository) Create(ctx context.Context, o *overlay.Overlay) error {
	payload, err := encodeOverlay(o)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, overlayKey(o.ID), payload, 0)
	pipe.ZAdd(ctx, overlayIDsKey, redis.Z{Score: float64(o.CreatedAt.UnixMilli()), Member: o.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	return nil
}

// Get fetches an overlay by ID.
// Returns ErrOverlayNotFound if the key does not exist.
func (r *OverlayRepository) Get(ctx context.Context, id string) (*overlay.Overlay, error) {
	value, err := r.client.Get(ctx, overlayKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOverlayNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	o, err := decodeOverlay(value)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return o, nil
}

// List returns all indexed overlays, newest first.
//
// Note: not strongly consistent (ZREVRANGE then MGET). An overlay deleted
// between the two calls is skipped.
func (r *OverlayRepository) List(ctx context.Context) ([]*overlay.Overlay, error) {
	ids, err := r.client.ZRevRange(ctx, overlayIDsKey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("zrevrange: %w", err)
	}
	if len(ids) == 0 {
		return []*overlay.Overlay{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = overlayKey(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}
	return r.parseMGetResult(keys, vals)
}

// Update overwrites an existing overlay.
// Returns ErrOverlayNotFound if it does not exist.
func (r *OverlayRepository) Update(ctx context.Context, o *overlay.Overlay) error {
	payload, err := encodeOverlay(o)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	ok, err := r.client.SetXX(ctx, overlayKey(o.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("setxx: %w", err)
	}
	if !ok {
		return ErrOverlayNotFound
	}
	return nil
}

// Delete removes an overlay by ID.
// Returns ErrOverlayNotFound if neither the record nor its index entry existed.
func (r *OverlayRepository) Delete(ctx context.Context, id string) error {
	key := overlayKey(id)

	pipe := r.client.TxPipeline()
	delRes := pipe.Del(ctx, key)
	zremRes := pipe.ZRem(ctx, overlayIDsKey, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("exec: %w", err)
	}

	delCount, zremCount := delRes.Val(), zremRes.Val()
	if delCount == 0 && zremCount == 0 {
		return ErrOverlayNotFound
	}
	if delCount != zremCount {
		r.log.Warn("overlay delete mismatch",
			zap.String("key", key),
			zap.Int64("del_count", delCount),
			zap.Int64("zrem_count", zremCount))
	}
	return nil
}

func encodeOverlay(o *overlay.Overlay) ([]byte, error) {
	return json.Marshal(o)
}

func decodeOverlay(raw []byte) (*overlay.Overlay, error) {
	var o overlay.Overlay
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// parseMGetResult converts MGET results to overlays. Missing keys are
// logged and skipped.
func (r *OverlayRepository) parseMGetResult(keys []string, vals []any) ([]*overlay.Overlay, error) {
	out := make([]*overlay.Overlay, 0, len(vals))
	for i, v := range vals {
		if v == nil {
			r.log.Warn("overlay missing during MGET", zap.String("key", keys[i]))
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("key %s at index %d: unexpected type (got %T, want string)", keys[i], i, v)
		}
		o, err := decodeOverlay([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("key %s at index %d: decode overlay: %w", keys[i], i, err)
		}
		out = append(out, o)
	}
	return out, nil
}
