package lock

import (
	"fmt"
	"time"

	"VelArchiver/internal/config"
)

const DefaultTTL = time.Hour

// FromConfig builds the configured locker. target is only used by the s3
// backend and may be nil otherwise.
func FromConfig(cfg *config.LockConfig, target ObjectStore) (Locker, error) {
	if cfg == nil {
		return Nop{}, nil
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	name := cfg.Name
	if name == "" {
		name = "velarchiver"
	}
	switch cfg.Backend {
	case "", config.LockNone:
		return Nop{}, nil
	case config.LockLocal:
		return NewLocal(LocalOptions{Dir: cfg.Dir, Name: name, TTL: ttl}), nil
	case config.LockS3:
		return NewS3(S3Options{Store: target, Name: name, TTL: ttl})
	case config.LockRedis:
		return NewRedis(RedisOptions{
			URL:      cfg.RedisURL,
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Name:     name,
			TTL:      ttl,
		})
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}
