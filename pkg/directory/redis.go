package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmerejkowsky/libqi/pkg/future"
)

const keyPrefix = "qi:services:"

// Redis is a directory backed by a Redis instance, so several nodes on
// different hosts share one service table. Registrations carry a TTL and
// must be refreshed; a crashed node's services age out.
type Redis struct {
	client  *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

// RedisOptions tunes the Redis directory.
type RedisOptions struct {
	// Addr is the Redis host:port.
	Addr     string
	Password string
	DB       int
	// TTL is the registration lifetime; zero means one minute.
	TTL time.Duration
	// Timeout bounds each directory operation; zero means five seconds.
	Timeout time.Duration
}

// NewRedis connects a directory client.
func NewRedis(opts RedisOptions) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Redis{client: client, ttl: opts.TTL, timeout: opts.Timeout}
}

// Close releases the underlying connection pool.
func (d *Redis) Close() error { return d.client.Close() }

// Ping verifies connectivity.
func (d *Redis) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Register implements Directory.
func (d *Redis) Register(name, endpoint string) future.Future[future.Void] {
	p := future.NewPromise[future.Void]()
	if name == "" {
		p.SetError("service name cannot be empty")
		return p.Future()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.client.Set(ctx, keyPrefix+name, endpoint, d.ttl).Err(); err != nil {
			p.SetError(fmt.Sprintf("register %s: %v", name, err))
			return
		}
		p.SetValue(future.Void{})
	}()
	return p.Future()
}

// Refresh extends a registration's TTL without changing the endpoint.
func (d *Redis) Refresh(name string) future.Future[future.Void] {
	p := future.NewPromise[future.Void]()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		ok, err := d.client.Expire(ctx, keyPrefix+name, d.ttl).Result()
		if err != nil {
			p.SetError(fmt.Sprintf("refresh %s: %v", name, err))
			return
		}
		if !ok {
			p.SetError(fmt.Sprintf("service not found: %s", name))
			return
		}
		p.SetValue(future.Void{})
	}()
	return p.Future()
}

// Unregister implements Directory.
func (d *Redis) Unregister(name string) future.Future[future.Void] {
	p := future.NewPromise[future.Void]()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		n, err := d.client.Del(ctx, keyPrefix+name).Result()
		if err != nil {
			p.SetError(fmt.Sprintf("unregister %s: %v", name, err))
			return
		}
		if n == 0 {
			p.SetError(fmt.Sprintf("service not found: %s", name))
			return
		}
		p.SetValue(future.Void{})
	}()
	return p.Future()
}

// Lookup implements Directory.
func (d *Redis) Lookup(name string) future.Future[string] {
	p := future.NewPromise[string]()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		endpoint, err := d.client.Get(ctx, keyPrefix+name).Result()
		if errors.Is(err, redis.Nil) {
			p.SetError(fmt.Sprintf("service not found: %s", name))
			return
		}
		if err != nil {
			p.SetError(fmt.Sprintf("lookup %s: %v", name, err))
			return
		}
		p.SetValue(endpoint)
	}()
	return p.Future()
}

// Services implements Directory.
func (d *Redis) Services() future.Future[[]string] {
	p := future.NewPromise[[]string]()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		var names []string
		iter := d.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			names = append(names, iter.Val()[len(keyPrefix):])
		}
		if err := iter.Err(); err != nil {
			p.SetError(fmt.Sprintf("list services: %v", err))
			return
		}
		p.SetValue(names)
	}()
	return p.Future()
}

var _ Directory = (*Redis)(nil)
