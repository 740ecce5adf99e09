// Package blobstore defines the narrow put/get/delete/presign
// interface files are stored and retrieved through, with an S3-backed
// production implementation and an in-memory one, used by tests and
// by bootstrap when no S3 bucket is configured.
package blobstore

import (
	"bytes"
	"context"
	"io"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"retrieval-platform/internal/apierrors"
)

// Store is the contract every component that reads or writes file
// bytes depends on.
type Store interface {
	Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// S3Store implements Store against an S3-compatible bucket.
type S3Store struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
}

// NewS3Store wraps an already-configured S3 client.
func NewS3Store(client *s3.Client, bucket string) *S3Store {
	return &S3Store{client: client, presign: s3.NewPresignClient(client), bucket: bucket}
}

func (s *S3Store) Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          content,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "put object", err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Transient, "get object", err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return apierrors.Wrap(apierrors.Transient, "delete object", err)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", apierrors.Wrap(apierrors.Transient, "presign get object", err)
	}
	return req.URL, nil
}

// MemStore is an in-memory Store, used by tests and by bootstrap when
// no S3 bucket is configured.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Put(_ context.Context, key string, content io.Reader, _ int64, _ string) error {
	buf, err := io.ReadAll(content)
	if err != nil {
		return apierrors.Wrap(apierrors.Validation, "read blob content", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = buf
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buf, ok := m.data[key]
	if !ok {
		return nil, apierrors.New(apierrors.Validation, "blob not found: "+key)
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (m *MemStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "mem://" + key, nil
}
