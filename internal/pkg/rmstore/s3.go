package rmstore

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/anatomi/rankmaniac/internal/pkg/rmaws"
)

// maxDeleteBatch is the S3 limit of keys per DeleteObjects request.
const maxDeleteBatch = 1000

// S3Store abstracts an AWS S3 (or minio) bucket as an ObjectStore
type S3Store struct {
	Client    s3iface.S3API
	Bucket    string
	Region    string
	Scheme    string
	ChunkSize int64

	minio       bool
	objectCache *lru.Cache
}

// Init initializes the store. A preset Client is kept as is.
func (s *S3Store) Init() error {
	if s.Scheme == "" {
		s.Scheme = viper.GetString("uriScheme")
		if s.Scheme == "" {
			s.Scheme = "s3"
		}
	}
	if s.ChunkSize <= 0 {
		s.ChunkSize = DefaultChunkSize
	}
	if s.objectCache == nil {
		s.objectCache, _ = lru.New(10000)
	}

	if s.Client != nil {
		log.Debug("s3 client was already initialized")
		return nil
	}

	sess, err := rmaws.NewSession(rmaws.ConfigFromViper(s.minio).WithRegion(s.Region))
	if err != nil {
		return fmt.Errorf("failed to create s3 session: %w", err)
	}
	s.Client = s3.New(sess)
	return nil
}

// URI returns the cluster visible address of key
func (s *S3Store) URI(key string) string {
	return fmt.Sprintf("%s://%s/%s", s.Scheme, s.Bucket, key)
}

// ListByPrefix lists all objects whose key starts with prefix.
func (s *S3Store) ListByPrefix(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	objects := make([]ObjectInfo, 0)

	params := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}
	err := s.Client.ListObjectsV2PagesWithContext(ctx, params,
		func(page *s3.ListObjectsV2Output, _ bool) bool {
			for _, object := range page.Contents {
				info := ObjectInfo{
					Key:  aws.StringValue(object.Key),
					Size: aws.Int64Value(object.Size),
				}
				objects = append(objects, info)
				s.objectCache.Add(info.Key, info)
			}
			return true
		})
	if err != nil {
		return nil, err
	}

	log.Debugf("listed %d objects under s3://%s/%s", len(objects), s.Bucket, prefix)
	return objects, nil
}

// DeleteAll deletes the given objects in batches.
func (s *S3Store) DeleteAll(ctx context.Context, objects []ObjectInfo) error {
	for start := 0; start < len(objects); start += maxDeleteBatch {
		end := start + maxDeleteBatch
		if end > len(objects) {
			end = len(objects)
		}

		ids := make([]*s3.ObjectIdentifier, 0, end-start)
		for _, object := range objects[start:end] {
			ids = append(ids, &s3.ObjectIdentifier{Key: aws.String(object.Key)})
			s.objectCache.Remove(object.Key)
		}

		out, err := s.Client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.Bucket),
			Delete: &s3.Delete{
				Objects: ids,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return err
		}
		if len(out.Errors) > 0 {
			// per key failures, throttling included, arrive in a 200 response
			first := out.Errors[0]
			return fmt.Errorf("failed to delete %d objects, first %s: %w",
				len(out.Errors), aws.StringValue(first.Key),
				awserr.New(aws.StringValue(first.Code), aws.StringValue(first.Message), nil))
		}
	}
	return nil
}

// Stat returns information about the object at key.
func (s *S3Store) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	if cached, exists := s.objectCache.Get(key); exists {
		return cached.(ObjectInfo), nil
	}

	result, err := s.Client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(key),
	})
	if err != nil {
		return ObjectInfo{}, err
	}

	for _, object := range result.Contents {
		if aws.StringValue(object.Key) == key {
			info := ObjectInfo{Key: key, Size: aws.Int64Value(object.Size)}
			s.objectCache.Add(key, info)
			return info, nil
		}
	}

	return ObjectInfo{}, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, s.Bucket, key)
}

// FirstChunk fetches at most ChunkSize bytes from the start of the object.
func (s *S3Store) FirstChunk(ctx context.Context, key string) ([]byte, error) {
	info, err := s.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	if info.Size == 0 {
		return []byte{}, nil
	}

	end := min64(info.Size, s.ChunkSize) - 1
	out, err := s.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", end)),
	})
	if err != nil {
		if rmaws.IsNotFound(err) {
			s.objectCache.Remove(key)
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrObjectNotFound, s.Bucket, key)
		}
		return nil, err
	}
	defer out.Body.Close()

	return ioutil.ReadAll(io.LimitReader(out.Body, s.ChunkSize))
}

// Upload writes body to key, replacing any existing object.
func (s *S3Store) Upload(ctx context.Context, key string, body io.Reader) error {
	uploader := s3manager.NewUploaderWithClient(s.Client)
	_, err := uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	s.objectCache.Remove(key)
	return err
}

// Download copies the object at key into w and returns the bytes written.
func (s *S3Store) Download(ctx context.Context, key string, w io.WriterAt) (int64, error) {
	downloader := s3manager.NewDownloaderWithClient(s.Client)
	return downloader.DownloadWithContext(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
}

// Close drops cached object metadata; the session holds no open connections.
func (s *S3Store) Close() error {
	if s.objectCache != nil {
		s.objectCache.Purge()
	}
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
