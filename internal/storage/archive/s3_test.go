// internal/storage/archive/s3_test.go
package archive

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Config_Key(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "reports/2025/01/03/r.json", "reports/2025/01/03/r.json"},
		{"etf", "reports/2025/01/03/r.json", "etf/reports/2025/01/03/r.json"},
		{"etf/", "file.txt", "etf/file.txt"},
	}

	for _, tt := range tests {
		s := &S3Storage{prefix: strings.TrimSuffix(tt.prefix, "/")}
		got := s.key(tt.path)
		if got != tt.want {
			t.Errorf("key(%q) with prefix %q = %q, want %q", tt.path, tt.prefix, got, tt.want)
		}
	}
}

func TestNewS3(t *testing.T) {
	_, err := NewS3(S3Config{})
	assert.Error(t, err, "bucket is required")

	s, err := NewS3(S3Config{Bucket: "reports", Endpoint: "http://localhost:9000", Prefix: "etf/"})
	require.NoError(t, err)
	assert.Equal(t, "reports", s.bucket)
	assert.Equal(t, "etf", s.prefix)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("reports/x.json"))
	assert.Equal(t, "application/octet-stream", contentType("x.bin"))
}
