// internal/storage/archive/interface.go
package archive

import (
	"context"
	"fmt"

	"github.com/newthinker/etfadvisor/internal/core"
)

// Storage is a key/blob store for archived reports. Paths are
// slash-separated and relative to the backend root.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all paths under the prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Backend types accepted by New.
const (
	TypeNone    = ""
	TypeLocalFS = "localfs"
	TypeS3      = "s3"
)

// New builds the backend named by typ. TypeNone yields a nil Storage.
func New(typ, path string, s3cfg S3Config) (Storage, error) {
	switch typ {
	case TypeNone:
		return nil, nil
	case TypeLocalFS:
		fs, err := NewLocalFS(path)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case TypeS3:
		s, err := NewS3(s3cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unknown archive type %q", typ))
	}
}
