package redis

import "github.com/redis/rueidis"

// NewCacheForTest wires a Cache around an injected client, used with
// rueidis/mock in tests.
func NewCacheForTest(client rueidis.Client) *Cache {
	return &Cache{client: client, prefix: defaultKeyPrefix}
}
