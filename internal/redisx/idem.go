package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idem remembers keys for a while. PutNX reports whether the key was new.
type Idem struct{ r *redis.Client }

func NewIdem(r *redis.Client) *Idem { return &Idem{r: r} }

func (s *Idem) PutNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.r.SetNX(ctx, "idem:"+key, "1", ttl).Result()
}
