package schedule

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"shorts-pipeline/config"
	"shorts-pipeline/types"
)

// RedisStore keeps one hash per upload key plus, per (platform, account),
// a sorted set of completed video ids scored by submission time in ms.
//
//	<prefix>:rec:<platform>:<account>:<video>  hash
//	<prefix>:done:<platform>:<account>         zset
//	<prefix>:keys                              set of record hashes
type RedisStore struct {
	cli    *redis.Client
	prefix string
}

var _ UploadStore = (*RedisStore)(nil)

// NewRedisClient accepts either host:port or a redis:// URL
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{Addr: cfg.URL, Password: cfg.Password, DB: cfg.DB}
	if strings.Contains(cfg.URL, "://") {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		if cfg.Password != "" {
			parsed.Password = cfg.Password
		}
		opts = parsed
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}

func NewRedisStore(cli *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "uploads"
	}
	return &RedisStore{cli: cli, prefix: prefix}
}

func (s *RedisStore) recordKey(k types.UploadKey) string {
	return fmt.Sprintf("%s:rec:%s:%s:%s", s.prefix, k.Platform, k.Account, k.VideoID)
}

func (s *RedisStore) doneKey(platform, account string) string {
	return fmt.Sprintf("%s:done:%s:%s", s.prefix, platform, account)
}

func (s *RedisStore) indexKey() string { return s.prefix + ":keys" }

func (s *RedisStore) Put(ctx context.Context, rec types.UploadRecord) error {
	rec.SubmittedAt = rec.SubmittedAt.UTC()
	key := s.recordKey(rec.Key())
	done := s.doneKey(rec.Platform, rec.Account)

	_, err := s.cli.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encodeRecord(rec))
		pipe.SAdd(ctx, s.indexKey(), key)
		if rec.Status == types.UploadCompleted {
			pipe.ZAdd(ctx, done, &redis.Z{Score: float64(rec.SubmittedAt.UnixMilli()), Member: rec.VideoID})
		} else {
			pipe.ZRem(ctx, done, rec.VideoID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key types.UploadKey) (types.UploadRecord, bool, error) {
	fields, err := s.cli.HGetAll(ctx, s.recordKey(key)).Result()
	if err != nil {
		return types.UploadRecord{}, false, err
	}
	if len(fields) == 0 {
		return types.UploadRecord{}, false, nil
	}
	rec, err := decodeRecord(fields)
	return rec, err == nil, err
}

func (s *RedisStore) Completed(ctx context.Context, platform, account string, since time.Time) ([]types.UploadRecord, error) {
	ids, err := s.cli.ZRangeByScore(ctx, s.doneKey(platform, account), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.recordKey(types.UploadKey{Platform: platform, Account: account, VideoID: id})
	}
	return s.loadMany(ctx, keys)
}

func (s *RedisStore) List(ctx context.Context) ([]types.UploadRecord, error) {
	keys, err := s.cli.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	return s.loadMany(ctx, keys)
}

func (s *RedisStore) loadMany(ctx context.Context, keys []string) ([]types.UploadRecord, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.StringStringMapCmd, len(keys))
	_, err := s.cli.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = pipe.HGetAll(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	out := make([]types.UploadRecord, 0, len(keys))
	for _, c := range cmds {
		fields, err := c.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func encodeRecord(r types.UploadRecord) map[string]interface{} {
	return map[string]interface{}{
		"platform":     r.Platform,
		"account":      r.Account,
		"video_id":     r.VideoID,
		"status":       string(r.Status),
		"submitted_at": r.SubmittedAt.Format(time.RFC3339Nano),
		"attempts":     r.Attempts,
		"output_path":  r.OutputPath,
		"remote_id":    r.RemoteID,
		"error":        r.Error,
	}
}

func decodeRecord(f map[string]string) (types.UploadRecord, error) {
	rec := types.UploadRecord{
		Platform:   f["platform"],
		Account:    f["account"],
		VideoID:    f["video_id"],
		Status:     types.UploadStatus(f["status"]),
		OutputPath: f["output_path"],
		RemoteID:   f["remote_id"],
		Error:      f["error"],
	}
	if v := f["submitted_at"]; v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return rec, fmt.Errorf("submitted_at: %w", err)
		}
		rec.SubmittedAt = t.UTC()
	}
	if v := f["attempts"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return rec, fmt.Errorf("attempts: %w", err)
		}
		rec.Attempts = n
	}
	return rec, nil
}
