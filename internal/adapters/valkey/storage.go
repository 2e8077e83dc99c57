package valkey

import (
	"context"
	"time"

	"github.com/valkey-io/valkey-go"
)

// opTimeout bounds each storage call; fiber.Storage carries no context.
const opTimeout = 2 * time.Second

// Storage adapts a Cache to fiber.Storage so middleware such as the rate
// limiter can share counters across replicas.
type Storage struct {
	cache *Cache
	ns    string
}

// NewStorage returns a fiber.Storage writing under the given namespace.
func NewStorage(cache *Cache, namespace string) *Storage {
	return &Storage{cache: cache, ns: namespace + ":"}
}

// Get returns nil, nil when the key does not exist.
func (s *Storage) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.cache.Get(ctx, s.ns+key)
}

// Set stores val; exp == 0 means no expiry.
func (s *Storage) Set(key string, val []byte, exp time.Duration) error {
	if key == "" || len(val) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	c := s.cache.client
	k := s.cache.prefix + s.ns + key
	if exp <= 0 {
		return c.Do(ctx, c.B().Set().Key(k).Value(valkey.BinaryString(val)).Build()).Error()
	}
	return c.Do(ctx, c.B().Set().Key(k).Value(valkey.BinaryString(val)).Px(exp).Build()).Error()
}

func (s *Storage) Delete(key string) error {
	if key == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	return s.cache.Delete(ctx, s.ns+key)
}

// Reset deletes every key in the namespace.
func (s *Storage) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*opTimeout)
	defer cancel()

	c := s.cache.client
	match := s.cache.prefix + s.ns + "*"
	var cursor uint64
	for {
		entry, err := c.Do(ctx, c.B().Scan().Cursor(cursor).Match(match).Count(100).Build()).AsScanEntry()
		if err != nil {
			return err
		}
		if len(entry.Elements) > 0 {
			if err := c.Do(ctx, c.B().Del().Key(entry.Elements...).Build()).Error(); err != nil {
				return err
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Close is a no-op; the Cache owns the client.
func (s *Storage) Close() error {
	return nil
}
