package scriptcache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each script in a hash and its cost history in a list.
// Both operations run as Lua scripts so a lookup increments and reads in
// one step and a save cannot interleave with another save.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a store using keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) scriptKey(fp string) string { return s.prefix + ":script:" + fp }
func (s *RedisStore) costKey(fp string) string   { return s.prefix + ":costs:" + fp }

var lookupScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
redis.call('HINCRBY', KEYS[1], 'use_count', 1)
return redis.call('HGETALL', KEYS[1])
`)

var saveScript = redis.NewScript(`
local id = redis.call('HGET', KEYS[1], 'id')
if not id then
  id = ARGV[1]
  redis.call('HSET', KEYS[1], 'id', id, 'fingerprint', ARGV[2], 'use_count', 0, 'token_cost', 0, 'created_at', ARGV[5])
end
redis.call('HSET', KEYS[1], 'script', ARGV[3], 'description', ARGV[4], 'updated_at', ARGV[5])
redis.call('HINCRBY', KEYS[1], 'token_cost', ARGV[6])
redis.call('RPUSH', KEYS[2], ARGV[6])
return id
`)

func (s *RedisStore) Lookup(ctx context.Context, fp string) (*Script, error) {
	res, err := lookupScript.Run(ctx, s.client, []string{s.scriptKey(fp)}).Slice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup script: %w", err)
	}
	return parseHash(res)
}

func (s *RedisStore) Save(ctx context.Context, fp, text, description string, tokenCost int) (string, error) {
	id, err := saveScript.Run(ctx, s.client,
		[]string{s.scriptKey(fp), s.costKey(fp)},
		uuid.NewString(), fp, text, description, s.now().UTC().Format(time.RFC3339Nano), tokenCost,
	).Text()
	if err != nil {
		return "", fmt.Errorf("save script: %w", err)
	}
	return id, nil
}

// parseHash decodes the flat field/value list HGETALL returns inside Lua.
func parseHash(flat []interface{}) (*Script, error) {
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("lookup script: malformed hash reply")
	}
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		fields[k] = v
	}

	sc := &Script{
		ID:          fields["id"],
		Fingerprint: fields["fingerprint"],
		Text:        fields["script"],
		Description: fields["description"],
	}
	var err error
	if sc.UseCount, err = strconv.Atoi(fields["use_count"]); err != nil {
		return nil, fmt.Errorf("lookup script: use_count: %w", err)
	}
	if sc.TokenCost, err = strconv.Atoi(fields["token_cost"]); err != nil {
		return nil, fmt.Errorf("lookup script: token_cost: %w", err)
	}
	sc.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	sc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return sc, nil
}
