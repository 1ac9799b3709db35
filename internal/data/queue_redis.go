package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/tessbot/slack-chat-bridge/internal/biz/domain"
	"github.com/tessbot/slack-chat-bridge/internal/biz/repo"
)

// Keys: {prefix}queue:session:{id} holds a session's items, {prefix}queue:ready
// lists sessions whose head may be delivered, {prefix}queue:active tracks
// sessions that are ready or in flight, {prefix}queue:inflight maps an in-flight
// session to its head item id, {prefix}queue:leases scores in-flight sessions by
// lease deadline (unix ms) and {prefix}queue:dedup:{id} expire after the dedup
// window. An active session is always either ready or leased, never both.

var enqueueScript = redis.NewScript(`
if redis.call('SET', KEYS[1], '1', 'NX', 'PX', ARGV[2]) == false then
	return 0
end
redis.call('RPUSH', KEYS[2], ARGV[1])
if redis.call('SADD', KEYS[3], ARGV[3]) == 1 then
	redis.call('RPUSH', KEYS[4], ARGV[3])
end
return 1
`)

// claimScript pops a ready session and leases its head item
var claimScript = redis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if not id then
	return {'empty'}
end
local key = ARGV[2] .. id
local head = redis.call('LINDEX', key, 0)
if not head then
	redis.call('SREM', KEYS[2], id)
	return {'stale', id}
end
local ok, item = pcall(cjson.decode, head)
if not ok or type(item) ~= 'table' or type(item['id']) ~= 'string' then
	redis.call('LPOP', key)
	if redis.call('LLEN', key) > 0 then
		redis.call('RPUSH', KEYS[1], id)
	else
		redis.call('SREM', KEYS[2], id)
	end
	return {'bad', id}
end
redis.call('HSET', KEYS[3], id, item['id'])
redis.call('ZADD', KEYS[4], ARGV[1], id)
return {'ok', id, head}
`)

// ackScript releases a session only for the item that currently holds it
var ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[4], ARGV[1]) ~= ARGV[2] then
	return 0
end
redis.call('HDEL', KEYS[4], ARGV[1])
redis.call('ZREM', KEYS[5], ARGV[1])
redis.call('LPOP', KEYS[1])
if redis.call('LLEN', KEYS[1]) > 0 then
	redis.call('RPUSH', KEYS[3], ARGV[1])
else
	redis.call('SREM', KEYS[2], ARGV[1])
end
return 1
`)

// recoverScript re-readies sessions whose lease has expired
var recoverScript = redis.NewScript(`
local n = 0
for _, id in ipairs(redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])) do
	redis.call('ZREM', KEYS[1], id)
	redis.call('HDEL', KEYS[2], id)
	if redis.call('LLEN', ARGV[2] .. id) > 0 then
		redis.call('RPUSH', KEYS[3], id)
		n = n + 1
	else
		redis.call('SREM', KEYS[4], id)
	end
end
return n
`)

// RedisQueueOptions configures the Redis dispatch queue
type RedisQueueOptions struct {
	Addr         string
	Password     string
	DB           int
	Prefix       string
	DedupWindow  time.Duration
	Lease        time.Duration // how long a dequeued item may stay unacked
	PollInterval time.Duration // wait between claims when nothing is ready
}

type redisQueue struct {
	client       *redis.Client
	prefix       string
	dedupWindow  time.Duration
	lease        time.Duration
	pollInterval time.Duration
	now          func() time.Time
}

// NewRedisQueue connects to Redis and returns a dispatch queue backed by it
func NewRedisQueue(opts RedisQueueOptions) (repo.DispatchQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisQueue(client, opts, time.Now), nil
}

func newRedisQueue(client *redis.Client, opts RedisQueueOptions, now func() time.Time) *redisQueue {
	if opts.Prefix == "" {
		opts.Prefix = "chatbridge:"
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = 5 * time.Minute
	}
	if opts.Lease <= 0 {
		opts.Lease = 10 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	return &redisQueue{
		client:       client,
		prefix:       opts.Prefix,
		dedupWindow:  opts.DedupWindow,
		lease:        opts.Lease,
		pollInterval: opts.PollInterval,
		now:          now,
	}
}

func (q *redisQueue) sessionPrefix() string       { return q.prefix + "queue:session:" }
func (q *redisQueue) sessionKey(id string) string { return q.sessionPrefix() + id }
func (q *redisQueue) readyKey() string            { return q.prefix + "queue:ready" }
func (q *redisQueue) activeKey() string           { return q.prefix + "queue:active" }
func (q *redisQueue) inflightKey() string         { return q.prefix + "queue:inflight" }
func (q *redisQueue) leasesKey() string           { return q.prefix + "queue:leases" }
func (q *redisQueue) dedupKey(id string) string   { return q.prefix + "queue:dedup:" + id }

func (q *redisQueue) Enqueue(ctx context.Context, item *domain.QueueItem) (bool, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return false, fmt.Errorf("encode queue item: %w", err)
	}
	dedupID := item.DedupID
	if dedupID == "" {
		dedupID = item.ID
	}

	keys := []string{q.dedupKey(dedupID), q.sessionKey(item.SessionID), q.activeKey(), q.readyKey()}
	added, err := enqueueScript.Run(ctx, q.client, keys, data, q.dedupWindow.Milliseconds(), item.SessionID).Int()
	if err != nil {
		return false, fmt.Errorf("redis enqueue: %w", err)
	}
	return added == 1, nil
}

// Dequeue leases the head item of the next ready session. The session stays
// unavailable to other consumers until the item is acked or the lease expires
// and Recover runs.
func (q *redisQueue) Dequeue(ctx context.Context) (*domain.QueueItem, error) {
	keys := []string{q.readyKey(), q.activeKey(), q.inflightKey(), q.leasesKey()}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		deadline := q.now().Add(q.lease).UnixMilli()
		res, err := claimScript.Run(ctx, q.client, keys, deadline, q.sessionPrefix()).StringSlice()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("redis dequeue: %w", err)
		}

		switch res[0] {
		case "ok":
			var item domain.QueueItem
			if err := json.Unmarshal([]byte(res[2]), &item); err != nil {
				return nil, fmt.Errorf("decode queue item: %w", err)
			}
			return &item, nil
		case "bad":
			return nil, fmt.Errorf("dropped undecodable queue item of session %s", res[1])
		case "stale":
			continue
		}

		// Idle consumers pick up the work of crashed ones
		recovered, err := q.recoverExpired(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if recovered > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

// Ack is a no-op unless item still holds its session's lease
func (q *redisQueue) Ack(ctx context.Context, item *domain.QueueItem) error {
	keys := []string{q.sessionKey(item.SessionID), q.activeKey(), q.readyKey(), q.inflightKey(), q.leasesKey()}
	if err := ackScript.Run(ctx, q.client, keys, item.SessionID, item.ID).Err(); err != nil {
		return fmt.Errorf("redis ack: %w", err)
	}
	return nil
}

// Recover makes the items of expired leases deliverable again
func (q *redisQueue) Recover(ctx context.Context) error {
	_, err := q.recoverExpired(ctx)
	return err
}

func (q *redisQueue) recoverExpired(ctx context.Context) (int, error) {
	keys := []string{q.leasesKey(), q.inflightKey(), q.readyKey(), q.activeKey()}
	n, err := recoverScript.Run(ctx, q.client, keys, q.now().UnixMilli(), q.sessionPrefix()).Int()
	if err != nil {
		return 0, fmt.Errorf("redis recover: %w", err)
	}
	return n, nil
}

func (q *redisQueue) Close() error {
	return q.client.Close()
}
