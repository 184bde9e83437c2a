// Package objectstore is the cloud object store client backing
// BootstrapArchive: listing objects under a per-mirror prefix, downloading
// the newest one, and (for update_bootstrap) uploading and pruning.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Store is the minimal object-store contract the Archive Fetcher and
// update_bootstrap need. It is deliberately narrow so tests can supply a
// fake instead of talking to a real bucket.
type Store interface {
	// List returns the keys under prefix, sorted lexicographically.
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	// Download writes the contents of key into w.
	Download(ctx context.Context, bucket, key string, w io.Writer) error
	// Upload reads all of r and stores it at key.
	Upload(ctx context.Context, bucket, key string, r io.Reader) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, bucket, key string) error
}

// S3Store implements Store against an AWS S3-compatible bucket.
type S3Store struct {
	Client *s3.Client
}

// New wraps an existing s3.Client.
func New(client *s3.Client) *S3Store {
	return &S3Store{Client: client}
}

// List implements Store.
func (s *S3Store) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %q/%q: %w", bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	sort.Strings(keys)

	return keys, nil
}

// Download implements Store.
func (s *S3Store) Download(ctx context.Context, bucket, key string, w io.Writer) error {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to get object %q/%q: %w", bucket, key, err)
	}
	defer out.Body.Close()

	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("failed to download object %q/%q: %w", bucket, key, err)
	}

	return nil
}

// Upload implements Store.
func (s *S3Store) Upload(ctx context.Context, bucket, key string, r io.Reader) error {
	if _, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   r,
	}); err != nil {
		return fmt.Errorf("failed to upload object %q/%q: %w", bucket, key, err)
	}

	return nil
}

// Delete implements Store.
func (s *S3Store) Delete(ctx context.Context, bucket, key string) error {
	if _, err := s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete object %q/%q: %w", bucket, key, err)
	}

	return nil
}
