package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/vitalcart/storefront-backend/pkg/config"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"google.golang.org/api/option"
)

// ErrObjectNotFound is returned by Get when the object does not exist.
var ErrObjectNotFound = errors.New("gcs object not found")

var errBucketRequired = errors.New("gcs bucket name is required")

type Client struct {
	client   *storage.Client
	bucket   string
	maxBytes int64
}

// NewClient opens a storage client for the configured bucket and checks that the bucket is reachable.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.GCSConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errBucketRequired
	}

	sc, err := storage.NewClient(ctx, clientOptions(gcp, cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating gcs client: %w", err)
	}

	c := &Client{client: sc, bucket: cfg.BucketName, maxBytes: cfg.MaxObjectBytes}
	if err := c.Ping(ctx); err != nil {
		_ = sc.Close()
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig, cfg config.GCSConfig) []option.ClientOption {
	switch {
	case cfg.Endpoint != "":
		// Emulators (fake-gcs-server) run without credentials.
		return []option.ClientOption{option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication()}
	case gcp.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case gcp.ApplicationCredentials != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	default:
		return nil
	}
}

func (c *Client) Bucket() string {
	if c == nil {
		return ""
	}
	return c.bucket
}

// Put writes data under object. Existing objects are never overwritten.
func (c *Client) Put(ctx context.Context, object, contentType string, data []byte) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := c.client.Bucket(c.bucket).Object(object).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		cancel()
		_ = w.Close()
		return fmt.Errorf("writing gcs object %q: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gcs object %q: %w", object, err)
	}
	return nil
}

// Get reads the whole object, refusing objects larger than the configured cap.
func (c *Client) Get(ctx context.Context, object string) ([]byte, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("gcs client not initialized")
	}
	r, err := c.client.Bucket(c.bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("opening gcs object %q: %w", object, err)
	}
	defer func() { _ = r.Close() }()

	return readLimited(r, c.maxBytes)
}

// Delete removes object; a missing object is not an error.
func (c *Client) Delete(ctx context.Context, object string) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	err := c.client.Bucket(c.bucket).Object(object).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting gcs object %q: %w", object, err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("gcs client not initialized")
	}
	if _, err := c.client.Bucket(c.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("reading bucket %q: %w", c.bucket, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("gcs object exceeds %d bytes", maxBytes)
	}
	return data, nil
}
