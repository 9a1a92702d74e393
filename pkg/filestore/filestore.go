package filestore

import (
	"context"
	"fmt"
	"strings"

	"github.com/igolaizola/sunogen/pkg/filestore/local"
	"github.com/igolaizola/sunogen/pkg/filestore/s3"
)

type fs interface {
	Upload(ctx context.Context, path, name string) error
	URL(ctx context.Context, name string) (string, error)
}

// Store persists generated assets and hands back durable references.
type Store struct {
	fs fs
}

// Upload stores the file at path under the given name.
func (s *Store) Upload(ctx context.Context, path, name string) error {
	return s.fs.Upload(ctx, path, name)
}

// URL returns a durable reference for a stored file.
func (s *Store) URL(ctx context.Context, name string) (string, error) {
	return s.fs.URL(ctx, name)
}

func New(typ, conn string, debug bool) (*Store, error) {
	var fs fs
	switch typ {
	case "s3":
		split := strings.Split(conn, "@")
		if len(split) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 connection string %q", conn)
		}
		auth := strings.Split(split[0], ":")
		if len(auth) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 auth string %q", conn)
		}
		key := auth[0]
		secret := auth[1]
		loc := strings.Split(split[1], ".")
		if len(loc) != 2 {
			return nil, fmt.Errorf("filestore: invalid s3 location string %q", conn)
		}
		bucket := loc[0]
		region := loc[1]
		candidate, err := s3.New(key, secret, region, bucket, debug)
		if err != nil {
			return nil, fmt.Errorf("filestore: %w", err)
		}
		fs = candidate
	case "local":
		fs = local.New(conn, debug)
	default:
		return nil, fmt.Errorf("filestore: unknown file storage type %q", typ)
	}
	return &Store{fs: fs}, nil
}
