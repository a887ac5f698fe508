package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/semmap/store"
)

// DefaultBucket is the KV bucket facts are kept in.
const DefaultBucket = "SEMMAP_FACTS"

// Bucket is the subset of a key/value bucket the store needs. Get returns
// store.ErrNotFound for missing keys.
type Bucket interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

type jetStreamBucket struct {
	kv jetstream.KeyValue
}

// OpenBucket opens the named JetStream KV bucket, creating it if it does
// not exist.
func OpenBucket(ctx context.Context, js jetstream.JetStream, name string) (Bucket, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return &jetStreamBucket{kv: kv}, nil
	}
	kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: "Semmap fact storage",
		History:     5,
	})
	if err != nil {
		return nil, fmt.Errorf("create bucket %s: %w", name, err)
	}
	return &jetStreamBucket{kv: kv}, nil
}

// NewBucket wraps an open JetStream KV bucket.
func NewBucket(kv jetstream.KeyValue) Bucket {
	return &jetStreamBucket{kv: kv}
}

func (b *jetStreamBucket) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return entry.Value(), nil
}

func (b *jetStreamBucket) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.kv.Put(ctx, key, value)
	return err
}

func (b *jetStreamBucket) Delete(ctx context.Context, key string) error {
	err := b.kv.Delete(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

func (b *jetStreamBucket) Keys(ctx context.Context) ([]string, error) {
	keys, err := b.kv.Keys(ctx)
	if errors.Is(err, jetstream.ErrNoKeysFound) {
		return nil, nil
	}
	return keys, err
}
