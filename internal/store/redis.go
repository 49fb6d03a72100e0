package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
)

// DefaultRedisPrefix namespaces every key written by RedisStorage.
const DefaultRedisPrefix = "rice:eval:"

// RedisStorage keeps each document as a JSON string under
// prefix+kind+":"+name and tracks names per kind in a set.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to url and pings the server.
func NewRedisStorage(url, prefix string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.ValidationErrorf("parsing redis URL: %v", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.UnavailableError("connecting to redis", err)
	}

	return NewRedisStorageWithClient(client, prefix), nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStorage{client: client, prefix: prefix}
}

func (rs *RedisStorage) key(kind Kind, name string) string {
	return rs.prefix + string(kind) + ":" + name
}

func (rs *RedisStorage) namesKey(kind Kind) string {
	return fmt.Sprintf("%snames:%s", rs.prefix, kind)
}

func (rs *RedisStorage) Save(ctx context.Context, doc *Document) error {
	if err := doc.Kind.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return apperrors.InternalError("failed to marshal document", err)
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.key(doc.Kind, doc.Name), data, 0)
	pipe.SAdd(ctx, rs.namesKey(doc.Kind), doc.Name)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.StorageError("saving document", err)
	}

	return nil
}

func (rs *RedisStorage) Load(ctx context.Context, kind Kind, name string) (*Document, error) {
	data, err := rs.client.Get(ctx, rs.key(kind, name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, notFound(kind, name)
		}
		return nil, apperrors.StorageError("loading document", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.StorageError("failed to unmarshal document", err)
	}
	return &doc, nil
}

func (rs *RedisStorage) List(ctx context.Context, kind Kind) ([]string, error) {
	names, err := rs.client.SMembers(ctx, rs.namesKey(kind)).Result()
	if err != nil {
		return nil, apperrors.StorageError("listing documents", err)
	}
	sort.Strings(names)
	return names, nil
}

func (rs *RedisStorage) Delete(ctx context.Context, kind Kind, name string) error {
	pipe := rs.client.TxPipeline()
	pipe.Del(ctx, rs.key(kind, name))
	pipe.SRem(ctx, rs.namesKey(kind), name)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.StorageError("deleting document", err)
	}
	return nil
}

func (rs *RedisStorage) Exists(ctx context.Context, kind Kind, name string) (bool, error) {
	n, err := rs.client.Exists(ctx, rs.key(kind, name)).Result()
	if err != nil {
		return false, apperrors.StorageError("checking document", err)
	}
	return n > 0, nil
}

// Close closes the Redis connection.
func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}
