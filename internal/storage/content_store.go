// internal/storage/content_store.go
package storage

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/quarrylabs/quarry-backend/internal/config"
)

var ErrContentNotFound = errors.New("content not found")

// ContentStore is content-addressed blob storage. Put returns the base58
// sha256 digest of the payload; storing the same bytes twice yields the
// same address.
type ContentStore interface {
	Put(data []byte) (string, error)
	Get(address string) ([]byte, error)
}

// ContentAddress computes the address a payload would be stored under.
func ContentAddress(data []byte) string {
	digest := sha256.Sum256(data)
	return base58.Encode(digest[:])
}

// S3Store keeps content in an S3 bucket keyed by content address.
type S3Store struct {
	client *s3.S3
	bucket string
	prefix string
}

func NewS3Store(cfg config.StorageConfig) (*S3Store, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWSRegion),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client: s3.New(sess),
		bucket: cfg.S3Bucket,
		prefix: "content",
	}, nil
}

func (s *S3Store) key(address string) string {
	return fmt.Sprintf("%s/%s", s.prefix, address)
}

func (s *S3Store) Put(data []byte) (string, error) {
	address := ContentAddress(data)

	_, err := s.client.PutObject(&s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(address)),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"address": address,
		"bytes":   len(data),
	}).Debug("Content stored")
	return address, nil
}

func (s *S3Store) Get(address string) ([]byte, error) {
	out, err := s.client.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(address)),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to fetch from S3: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read S3 object: %w", err)
	}
	return data, nil
}

// MemoryStore is the in-process store used in development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Put(data []byte) (string, error) {
	address := ContentAddress(data)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.blobs[address]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		m.blobs[address] = stored
	}
	return address, nil
}

func (m *MemoryStore) Get(address string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[address]
	if !ok {
		return nil, ErrContentNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
