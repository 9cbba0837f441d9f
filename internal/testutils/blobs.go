package testutils

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"purchasedesk/pkg/types"
)

var ErrBlobUnavailable = errors.New("blob store unavailable")

var ErrBlobNotFound = errors.New("blob not found")

type blob struct {
	data        []byte
	contentType string
	modified    time.Time
}

// Blobs is an in-memory object store. The *Err hooks are consulted per key;
// returning a non nil error fails that call without touching state.
type Blobs struct {
	mu      sync.Mutex
	objects map[string]blob
	journal *Journal

	PutErr    func(key string) error
	DeleteErr func(key string) error
	StatErr   func(key string) error
	ListErr   error

	Calls int
}

func NewBlobs(journal *Journal) *Blobs {
	return &Blobs{objects: make(map[string]blob), journal: journal}
}

// FailKeys returns a hook failing every key for which match is true.
func FailKeys(match func(key string) bool) func(string) error {
	return func(key string) error {
		if match(key) {
			return ErrBlobUnavailable
		}
		return nil
	}
}

func FailAll(string) error {
	return ErrBlobUnavailable
}

// Seed stores an object directly, bypassing failure hooks.
func (b *Blobs) Seed(key string, data []byte, contentType string) {
	b.SeedAt(key, data, contentType, time.Now().UTC())
}

// SeedAt is Seed with an explicit last modified time.
func (b *Blobs) SeedAt(key string, data []byte, contentType string, modified time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = blob{data: data, contentType: contentType, modified: modified}
}

func (b *Blobs) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.objects[key]
	return ok
}

func (b *Blobs) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.objects))
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (b *Blobs) PutObject(_ context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Calls++
	b.journal.Record("blob.put %s", key)

	if b.PutErr != nil {
		if err := b.PutErr(key); err != nil {
			return err
		}
	}

	b.objects[key] = blob{data: data, contentType: contentType, modified: time.Now().UTC()}
	return nil
}

func (b *Blobs) DeleteObject(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Calls++
	b.journal.Record("blob.delete %s", key)

	if b.DeleteErr != nil {
		if err := b.DeleteErr(key); err != nil {
			return err
		}
	}

	delete(b.objects, key)
	return nil
}

func (b *Blobs) StatObject(_ context.Context, key string) (*types.BlobInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Calls++

	if b.StatErr != nil {
		if err := b.StatErr(key); err != nil {
			return nil, err
		}
	}

	obj, ok := b.objects[key]
	if !ok {
		return nil, ErrBlobNotFound
	}

	size := int64(len(obj.data))
	sum := md5.Sum(obj.data)
	etag := hex.EncodeToString(sum[:])
	contentType := obj.contentType
	modified := obj.modified

	return &types.BlobInfo{
		Key:          key,
		Size:         &size,
		ContentType:  &contentType,
		ETag:         &etag,
		LastModified: &modified,
	}, nil
}

func (b *Blobs) ListObjects(_ context.Context, prefix string) ([]types.ObjectSummary, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Calls++

	if b.ListErr != nil {
		return nil, b.ListErr
	}

	objects := make([]types.ObjectSummary, 0)
	for key, obj := range b.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, types.ObjectSummary{Key: key, LastModified: obj.modified})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

func (b *Blobs) PublicURL(key string) string {
	return "https://images.test/" + key
}
