package refresh

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Repo = (*RedisRepo)(nil)

const defaultRedisPrefix = "shop:grant:"

// RedisRepo keeps grants as hashes, indexed by issue time in a sorted set so
// cleanup does not have to scan the keyspace.
type RedisRepo struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

func NewRedisRepo(client redis.UniversalClient, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisRepo{client: client, prefix: prefix, timeout: 3 * time.Second}
}

func (r *RedisRepo) key(id string) string {
	return r.prefix + id
}

func (r *RedisRepo) indexKey() string {
	return r.prefix + "by-issued"
}

func (r *RedisRepo) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *RedisRepo) Upsert(grant *Grant) error {
	ctx, cancel := r.ctx()
	defer cancel()

	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, r.key(grant.ID), map[string]any{
			"user_id":   grant.UserID,
			"issued_at": grant.IssuedAt.UnixNano(),
		})
		p.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(grant.IssuedAt.Unix()), Member: grant.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("[RedisRepo.Upsert] %w", err)
	}
	return nil
}

func (r *RedisRepo) Delete(id string) (bool, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, r.key(id))
		p.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("[RedisRepo.Delete] %w", err)
	}
	return del.Val() > 0, nil
}

func (r *RedisRepo) Get(id string) (*Grant, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	fields, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("[RedisRepo.Get] %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrGrantNotFound
	}

	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("[RedisRepo.Get] corrupt issued_at for grant: %w", err)
	}
	return &Grant{ID: id, UserID: fields["user_id"], IssuedAt: time.Unix(0, issued)}, nil
}

func (r *RedisRepo) DeleteIssuedBefore(cutoff time.Time) (int, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	ids, err := r.client.ZRangeByScore(ctx, r.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("[RedisRepo.DeleteIssuedBefore] %w", err)
	}
	removed := 0
	for _, id := range ids {
		ok, err := r.Delete(id)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
