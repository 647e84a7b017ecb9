package rmstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// StoreType is an identifier for supported ObjectStores
type StoreType int

// Identifiers for supported StoreTypes
const (
	S3 StoreType = iota
	MINIO
)

func (t StoreType) String() string {
	switch t {
	case S3:
		return "s3"
	case MINIO:
		return "minio"
	}
	return fmt.Sprintf("StoreType(%d)", int(t))
}

// ParseStoreType maps a backend name to its StoreType.
func ParseStoreType(name string) (StoreType, error) {
	switch name {
	case "", "s3":
		return S3, nil
	case "minio":
		return MINIO, nil
	}
	return S3, fmt.Errorf("unknown store type %q", name)
}

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// DefaultChunkSize is the number of bytes FirstChunk reads.
const DefaultChunkSize = 8192

// ObjectStore is the remote store that holds all durable job state.
// Keys are full bucket keys; callers are responsible for namespacing.
type ObjectStore interface {
	ListByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DeleteAll(ctx context.Context, objects []ObjectInfo) error
	// FirstChunk returns at most the first chunk of the object at key.
	FirstChunk(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, body io.Reader) error
	Download(ctx context.Context, key string, w io.WriterAt) (int64, error)
	// URI returns the address of key as seen by the cluster.
	URI(key string) string
	Close() error
}

// ObjectInfo provides information about a stored object
type ObjectInfo struct {
	Key  string // full object key
	Size int64  // object size in bytes
}

// StoreConfig selects the bucket of an ObjectStore and how it is read.
// An empty Region falls back to the loaded configuration and a zero
// ChunkSize to DefaultChunkSize.
type StoreConfig struct {
	Bucket    string
	Region    string
	ChunkSize int64
}

// NewObjectStore intializes an ObjectStore of the given type
func NewObjectStore(storeType StoreType, cfg StoreConfig) (ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("no bucket configured")
	}

	store := &S3Store{Bucket: cfg.Bucket, Region: cfg.Region, ChunkSize: cfg.ChunkSize}
	switch storeType {
	case S3:
		log.Debug("using s3 store")
	case MINIO:
		log.Debug("using minio store")
		store.minio = true
	default:
		return nil, fmt.Errorf("unsupported store type %s", storeType)
	}

	if err := store.Init(); err != nil {
		return nil, err
	}
	return store, nil
}
