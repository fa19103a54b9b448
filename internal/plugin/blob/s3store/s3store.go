// Package s3store stores blobs in an S3 bucket keyed by content hash
// with the same two-level fan-out as the local backend.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/forgeos/graph-service/internal/config"
	registryblob "github.com/forgeos/graph-service/internal/registry/blob"
	registrystore "github.com/forgeos/graph-service/internal/registry/store"
)

func init() {
	registryblob.Register(registryblob.Plugin{
		Name:   "s3",
		Loader: load,
	})
}

func load(ctx context.Context) (registryblob.Store, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.BlobBucket == "" {
		return nil, fmt.Errorf("s3 blob store: FORGE_BLOB_BUCKET is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	)
	if err != nil {
		return nil, fmt.Errorf("s3 blob store: load AWS config: %w", err)
	}
	usePathStyle := cfg.BlobUsePathStyle
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = usePathStyle
	})
	return &S3Store{client: client, bucket: cfg.BlobBucket}, nil
}

type S3Store struct {
	client *s3.Client
	bucket string
}

func (s *S3Store) key(hash string) string {
	a, b := registryblob.ShardPath(hash)
	return a + "/" + b + "/" + hash
}

func (s *S3Store) Store(ctx context.Context, content string) (string, error) {
	if content == "" {
		return "", nil
	}
	ref := registryblob.Ref(content)
	hash, _ := registryblob.ParseRef(ref)
	key := s.key(hash)
	// Content-addressed keys make re-puts harmless; skip the round trip
	// when the object is already there.
	exists, err := s.exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return ref, nil
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 blob store: put object: %w", err)
	}
	return ref, nil
}

func (s *S3Store) Resolve(ctx context.Context, ref string) (string, error) {
	hash, err := registryblob.ParseRef(ref)
	if err != nil {
		return "", err
	}
	key := s.key(hash)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return "", &registrystore.NotFoundError{Resource: "blob", ID: ref}
		}
		return "", fmt.Errorf("s3 blob store: get object: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("s3 blob store: read object: %w", err)
	}
	return string(data), nil
}

func (s *S3Store) Exists(ctx context.Context, ref string) (bool, error) {
	hash, err := registryblob.ParseRef(ref)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, s.key(hash))
}

func (s *S3Store) exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("s3 blob store: head object: %w", err)
	}
	return true, nil
}

var _ registryblob.Store = (*S3Store)(nil)
