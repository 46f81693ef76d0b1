package lock

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "velarchiver:lock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisOptions struct {
	URL      string
	Host     string
	Port     string
	Password string
	DB       int
	Name     string
	TTL      time.Duration
}

// RedisLocker is a SET NX PX lock. The TTL bounds how long a crashed run
// can block later ones.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	mu     sync.Mutex
	token  string
}

func buildRedisOptions(opts RedisOptions) (*redis.Options, error) {
	if opts.URL != "" {
		opt, err := redis.ParseURL(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opt, nil
	}

	host := opts.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := opts.Port
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: opts.Password,
		DB:       opts.DB,
	}, nil
}

func NewRedis(opts RedisOptions) (*RedisLocker, error) {
	ro, err := buildRedisOptions(opts)
	if err != nil {
		return nil, err
	}
	return NewRedisWithClient(redis.NewClient(ro), opts.Name, opts.TTL), nil
}

func NewRedisWithClient(client *redis.Client, name string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisLocker{client: client, key: redisKeyPrefix + safeName(name), ttl: ttl}
}

// Ping checks connectivity without touching the lock.
func (l *RedisLocker) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (l *RedisLocker) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return fmt.Errorf("redis lock already held by this process")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: redis key %s", ErrLocked, l.key)
	}
	l.token = token
	return nil
}

func (l *RedisLocker) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return nil
	}
	token := l.token
	l.token = ""
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}
