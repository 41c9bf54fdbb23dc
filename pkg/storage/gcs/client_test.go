package gcs

import (
	"context"
	"strings"
	"testing"

	"github.com/vitalcart/storefront-backend/pkg/config"
)

func TestNewClientRequiresBucket(t *testing.T) {
	if _, err := NewClient(context.Background(), config.GCPConfig{}, config.GCSConfig{}, nil); err != errBucketRequired {
		t.Fatalf("expected bucket error, got %v", err)
	}
}

func TestClientOptionsPreferEmulatorEndpoint(t *testing.T) {
	gcp := config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/creds.json"}

	if got := clientOptions(gcp, config.GCSConfig{Endpoint: "http://localhost:4443/storage/v1/"}); len(got) != 2 {
		t.Fatalf("expected endpoint and no-auth options, got %d", len(got))
	}
	if got := clientOptions(gcp, config.GCSConfig{}); len(got) != 1 {
		t.Fatalf("expected credentials option, got %d", len(got))
	}
	if got := clientOptions(config.GCPConfig{}, config.GCSConfig{}); got != nil {
		t.Fatalf("expected default credentials, got %d options", len(got))
	}
}

func TestReadLimited(t *testing.T) {
	data, err := readLimited(strings.NewReader("abcd"), 4)
	if err != nil || string(data) != "abcd" {
		t.Fatalf("unexpected read %q err=%v", data, err)
	}
	if _, err := readLimited(strings.NewReader("abcde"), 4); err == nil {
		t.Fatal("expected oversize object to be rejected")
	}
	if data, err := readLimited(strings.NewReader("abcde"), 0); err != nil || len(data) != 5 {
		t.Fatalf("expected uncapped read, got %d err=%v", len(data), err)
	}
}

func TestNilClientIsNotInitialized(t *testing.T) {
	var c *Client
	ctx := context.Background()
	if err := c.Put(ctx, "a", "image/png", []byte{1}); err == nil {
		t.Fatal("expected put on nil client to fail")
	}
	if _, err := c.Get(ctx, "a"); err == nil {
		t.Fatal("expected get on nil client to fail")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if c.Bucket() != "" {
		t.Fatal("expected empty bucket")
	}
}
