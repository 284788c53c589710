package processor

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"callpipe/pkg/utils"
)

// Deduper claims a delivery id before the pipeline runs. At-least-once
// delivery means duplicates are normal; a claimed id is skipped cheaply here,
// with the database upserts as the correctness backstop when the claim state
// has expired.
type Deduper interface {
	Claim(ctx context.Context, messageID string) (bool, error)
	Release(ctx context.Context, messageID string) error
}

const dedupTTL = 24 * time.Hour

type redisDeduper struct {
	rdb *redis.Client
}

func NewRedisDeduper(rdb *redis.Client) Deduper {
	return redisDeduper{rdb: rdb}
}

func (d redisDeduper) Claim(ctx context.Context, messageID string) (bool, error) {
	return utils.MarkProcessed(ctx, d.rdb, "callpipe:msg:"+messageID, dedupTTL)
}

func (d redisDeduper) Release(ctx context.Context, messageID string) error {
	return utils.ClearProcessed(ctx, d.rdb, "callpipe:msg:"+messageID)
}
