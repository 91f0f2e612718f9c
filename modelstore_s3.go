package prefixcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3ModelStoreConfig configures the S3 model store.
type S3ModelStoreConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"` // For S3-compatible services (MinIO, etc.)
	// AccessKeyID for authentication. Prefer using IAM roles, instance profiles,
	// or environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY) instead
	// of setting these directly. DO NOT commit credentials to source control.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	Prefix          string `yaml:"prefix,omitempty"`         // Key prefix for all objects
	UsePathStyle    bool   `yaml:"use_path_style,omitempty"` // Use path-style addressing
	CacheSize       int    `yaml:"cache_size,omitempty"`     // Number of documents to cache (default: 100)

	// MaxRetries is the max retry attempts for S3 operations (default: 3)
	MaxRetries int `yaml:"max_retries,omitempty"`
}

// S3ModelStore implements ModelStore using S3 or S3-compatible storage.
// Reads go through an LRU document cache; writes go through a circuit
// breaker so a misbehaving endpoint fails fast instead of hanging every
// request.
type S3ModelStore struct {
	client  *s3.Client
	config  S3ModelStoreConfig
	cache   *lruCache
	retryer *Retryer
	breaker *CircuitBreaker
}

// lruCache is a small LRU cache for model documents.
type lruCache struct {
	capacity int
	items    map[string]*cacheItem
	order    []string
	mu       sync.Mutex
}

type cacheItem struct {
	data      []byte
	timestamp time.Time
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		items:    make(map[string]*cacheItem),
	}
}

func (c *lruCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}

	// Move to end (most recently used)
	c.moveToEnd(key)
	return item.data, true
}

func (c *lruCache) Put(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.items[key]; ok {
		c.items[key].data = data
		c.items[key].timestamp = time.Now()
		c.moveToEnd(key)
		return
	}

	// Evict if at capacity
	for len(c.items) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}

	c.items[key] = &cacheItem{data: data, timestamp: time.Now()}
	c.order = append(c.order, key)
}

func (c *lruCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *lruCache) moveToEnd(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, key)
			break
		}
	}
}

// NewS3ModelStore creates a new S3-backed model store.
func NewS3ModelStore(cfg S3ModelStoreConfig) (*S3ModelStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	// Build AWS config options
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Build S3 client options
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return &S3ModelStore{
		client: client,
		config: cfg,
		cache:  newLRUCache(cfg.CacheSize),
		retryer: NewRetryer(RetryConfig{
			MaxAttempts:       cfg.MaxRetries,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            0.1,
			RetryIf:           IsRetryable,
		}),
		breaker: NewCircuitBreaker(5, 30*time.Second),
	}, nil
}

// objectKey maps a model name to its object key.
func (s *S3ModelStore) objectKey(name string) string {
	return s.config.Prefix + name + modelFileExt
}

func (s *S3ModelStore) Get(ctx context.Context, name string) (FrequencyModel, error) {
	key := s.objectKey(name)

	// Check cache first
	if doc, ok := s.cache.Get(key); ok {
		model, err := ParseModel(doc)
		if err != nil {
			return FrequencyModel{}, newStoreError("s3", "get", name, err)
		}
		return model, nil
	}

	val, result := s.retryer.DoWithResult(ctx, func() (any, error) {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		d, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("S3 read body failed: %w", err)
		}
		return d, nil
	})

	if result.LastErr != nil {
		if isS3NotFound(result.LastErr) {
			return FrequencyModel{}, newStoreError("s3", "get", name, ErrModelNotFound)
		}
		return FrequencyModel{}, newStoreError("s3", "get", name, result.LastErr)
	}

	doc := val.([]byte)
	model, err := ParseModel(doc)
	if err != nil {
		return FrequencyModel{}, newStoreError("s3", "get", name, err)
	}
	s.cache.Put(key, doc)
	return model, nil
}

func (s *S3ModelStore) Put(ctx context.Context, model FrequencyModel) error {
	name := model.Metadata.Name
	if err := model.Validate(); err != nil {
		return newStoreError("s3", "put", name, err)
	}
	doc, err := MarshalModel(model)
	if err != nil {
		return newStoreError("s3", "put", name, err)
	}
	key := s.objectKey(name)

	err = s.breaker.Execute(func() error {
		result := s.retryer.Do(ctx, func() error {
			_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
				Bucket: aws.String(s.config.Bucket),
				Key:    aws.String(key),
				Body:   bytes.NewReader(doc),
			})
			if err != nil {
				return fmt.Errorf("S3 put object failed: %w", err)
			}
			return nil
		})
		return result.LastErr
	})
	if err != nil {
		return newStoreError("s3", "put", name, err)
	}

	s.cache.Put(key, doc)
	return nil
}

func (s *S3ModelStore) Delete(ctx context.Context, name string) error {
	// S3 deletes are idempotent, so check existence to honor the
	// not-found contract of the interface.
	exists, err := s.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return newStoreError("s3", "delete", name, ErrModelNotFound)
	}
	key := s.objectKey(name)

	err = s.breaker.Execute(func() error {
		result := s.retryer.Do(ctx, func() error {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(s.config.Bucket),
				Key:    aws.String(key),
			})
			if err != nil {
				return fmt.Errorf("S3 delete object failed: %w", err)
			}
			return nil
		})
		return result.LastErr
	})
	if err != nil {
		return newStoreError("s3", "delete", name, err)
	}

	s.cache.Delete(key)
	return nil
}

func (s *S3ModelStore) List(ctx context.Context) ([]string, error) {
	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(s.config.Prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, newStoreError("s3", "list", "", err)
		}
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.ToString(obj.Key), s.config.Prefix)
			if !strings.HasSuffix(key, modelFileExt) {
				continue
			}
			names = append(names, strings.TrimSuffix(key, modelFileExt))
		}
	}

	sort.Strings(names)
	return names, nil
}

func (s *S3ModelStore) Exists(ctx context.Context, name string) (bool, error) {
	key := s.objectKey(name)

	// Check cache first
	if _, ok := s.cache.Get(key); ok {
		return true, nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, newStoreError("s3", "exists", name, err)
	}

	return true, nil
}

func (s *S3ModelStore) Close() error {
	return nil
}

// isS3NotFound reports whether an S3 error means the object is absent.
func isS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	// HeadObject reports missing keys through the generic API error path
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404")
}
