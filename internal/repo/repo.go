package repo

import "go.uber.org/zap"

// Repository groups the persistence backends.
type Repository struct {
	log    *zap.Logger
	client *RedisClient // nil when running in memory

	Overlays OverlayStore
}

// NewRepository selects Redis when addr is set, process memory otherwise.
func NewRepository(log *zap.Logger, addr, password string, db int) *Repository {
	log = log.Named("repo")

	if addr == "" {
		log.Info("no redis address configured; overlays are kept in memory")
		return &Repository{log: log, Overlays: NewMemoryOverlayStore(log)}
	}

	client := NewRedisClient(log, addr, password, db)
	return &Repository{
		log:      log,
		client:   client,
		Overlays: NewOverlayRepository(log, client),
	}
}

// Close releases the Redis connection, if any.
func (r *Repository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
