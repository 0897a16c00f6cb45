package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/hatchmark-backend/internal/platform/logger"
	"github.com/yungbote/hatchmark-backend/internal/types"
)

// Redis layout, all under q:{name}:
//
//	ready    LIST of message ids, LPUSH on send, RPOP on claim
//	inflight ZSET of message ids scored by visibility deadline (unix ms)
//	dead     LIST of raw bodies that exhausted the receive budget
//	msg:{id} HASH with body and receives fields
//
// Claim and reclaim run as Lua so a crash between commands cannot strand
// a message in neither list.

// claimScript pops up to ARGV[3] ids off ready, bumps each receive
// count and parks the id in inflight until ARGV[2].
var claimScript = goredis.NewScript(`
local out = {}
for i = 1, tonumber(ARGV[3]) do
  local id = redis.call("RPOP", KEYS[1])
  if not id then break end
  local key = ARGV[1] .. id
  local body = redis.call("HGET", key, "body")
  if body then
    local receives = redis.call("HINCRBY", key, "receives", 1)
    redis.call("ZADD", KEYS[2], ARGV[2], id)
    table.insert(out, id)
    table.insert(out, body)
    table.insert(out, tostring(receives))
  end
end
return out
`)

// reclaimScript moves expired inflight ids back to ready, or to dead
// once their receive count has reached ARGV[3].
var reclaimScript = goredis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[2])
local requeued = 0
for _, id in ipairs(expired) do
  redis.call("ZREM", KEYS[1], id)
  local key = ARGV[1] .. id
  local body = redis.call("HGET", key, "body")
  if body then
    local receives = tonumber(redis.call("HGET", key, "receives") or "0")
    if receives >= tonumber(ARGV[3]) then
      redis.call("LPUSH", KEYS[3], body)
      redis.call("DEL", key)
    else
      redis.call("LPUSH", KEYS[2], id)
      requeued = requeued + 1
    end
  end
end
return requeued
`)

type redisQueue struct {
	log         *logger.Logger
	rdb         *goredis.Client
	name        string
	maxReceives int
}

func NewRedisQueue(log *logger.Logger, rdb *goredis.Client, name string, maxReceives int) (Queue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if name == "" {
		name = "watermark"
	}
	if maxReceives <= 0 {
		maxReceives = 5
	}
	return &redisQueue{
		log:         log.With("service", "RedisQueue", "queue", name),
		rdb:         rdb,
		name:        name,
		maxReceives: maxReceives,
	}, nil
}

func (q *redisQueue) readyKey() string    { return "q:" + q.name + ":ready" }
func (q *redisQueue) inflightKey() string { return "q:" + q.name + ":inflight" }
func (q *redisQueue) deadKey() string     { return "q:" + q.name + ":dead" }
func (q *redisQueue) msgPrefix() string   { return "q:" + q.name + ":msg:" }

func (q *redisQueue) Send(ctx context.Context, job types.WatermarkJob) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	id := uuid.NewString()
	pipe := q.rdb.TxPipeline()
	pipe.HSet(ctx, q.msgPrefix()+id, "body", body, "receives", 0)
	pipe.LPush(ctx, q.readyKey(), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue send: %w", err)
	}
	return nil
}

func (q *redisQueue) Receive(ctx context.Context, maxCount int, visibility time.Duration) ([]Delivery, error) {
	if maxCount <= 0 {
		maxCount = 1
	}
	now := time.Now()

	requeued, err := reclaimScript.Run(ctx, q.rdb,
		[]string{q.inflightKey(), q.readyKey(), q.deadKey()},
		q.msgPrefix(), now.UnixMilli(), q.maxReceives,
	).Int()
	if err != nil {
		return nil, fmt.Errorf("queue reclaim: %w", err)
	}
	if requeued > 0 {
		q.log.Warn("requeued expired deliveries", "count", requeued)
	}

	raw, err := claimScript.Run(ctx, q.rdb,
		[]string{q.readyKey(), q.inflightKey()},
		q.msgPrefix(), now.Add(visibility).UnixMilli(), maxCount,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("queue claim: %w", err)
	}

	out := make([]Delivery, 0, len(raw)/3)
	for i := 0; i+2 < len(raw); i += 3 {
		id, _ := raw[i].(string)
		body, _ := raw[i+1].(string)
		receives, _ := raw[i+2].(string)

		var job types.WatermarkJob
		if err := json.Unmarshal([]byte(body), &job); err != nil {
			q.log.Warn("dropping undecodable job body", "id", id, "error", err)
			_ = q.Delete(ctx, id)
			continue
		}
		n, _ := strconv.Atoi(receives)
		out = append(out, Delivery{Job: job, Receipt: id, ReceiveCount: n})
	}
	return out, nil
}

func (q *redisQueue) Delete(ctx context.Context, receipt string) error {
	if receipt == "" {
		return nil
	}
	pipe := q.rdb.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey(), receipt)
	pipe.Del(ctx, q.msgPrefix()+receipt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue delete: %w", err)
	}
	return nil
}

// Depth reports ready plus inflight counts, for operator summaries.
func (q *redisQueue) Depth(ctx context.Context) (ready int64, inflight int64, err error) {
	ready, err = q.rdb.LLen(ctx, q.readyKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	inflight, err = q.rdb.ZCard(ctx, q.inflightKey()).Result()
	if err != nil {
		return 0, 0, err
	}
	return ready, inflight, nil
}

// DeadDepth reports how many jobs exhausted their receive budget.
func (q *redisQueue) DeadDepth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.deadKey()).Result()
}
