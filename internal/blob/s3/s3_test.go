package s3blob

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		useSSL bool
		want   string
	}{
		{"https://minio.local:9000", false, "https://minio.local:9000"},
		{"http://minio.local:9000", true, "http://minio.local:9000"},
		{"minio.local:9000", false, "http://minio.local:9000"},
		{"e2.idrivee2.com", true, "https://e2.idrivee2.com"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.useSSL); got != tt.want {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.useSSL, got, tt.want)
		}
	}
}

func TestOptions(t *testing.T) {
	var o s3.Options
	for _, fn := range options(ClientConfig{Endpoint: "localhost:9000", ForcePathStyle: true}) {
		fn(&o)
	}
	if o.BaseEndpoint == nil || *o.BaseEndpoint != "http://localhost:9000" {
		t.Fatalf("BaseEndpoint = %v", o.BaseEndpoint)
	}
	if !o.UsePathStyle {
		t.Fatal("UsePathStyle not set")
	}

	if opts := options(ClientConfig{}); len(opts) != 0 {
		t.Fatalf("plain AWS config produced %d options", len(opts))
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, ClientConfig{Region: "us-east-1"}); err == nil {
		t.Fatal("missing bucket accepted")
	}
	if _, err := New(ctx, ClientConfig{Bucket: "b"}); err == nil {
		t.Fatal("missing region accepted")
	}
}

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", fmt.Errorf("wrap: %w", &types.NoSuchKey{}), true},
		{"not found", &types.NotFound{}, true},
		{"bare 404", statusErr(404), true},
		{"403", statusErr(403), false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		if got := isNotFound(tt.err); got != tt.want {
			t.Errorf("%s: isNotFound = %v, want %v", tt.name, got, tt.want)
		}
	}
}
