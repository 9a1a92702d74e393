package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type store struct {
	root string
}

func New(root string, debug bool) *store {
	return &store{root: root}
}

func (s *store) Upload(ctx context.Context, path, name string) error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("local: couldn't create folder %q: %w", s.root, err)
	}
	dst := filepath.Join(s.root, name)
	if err := copyFile(path, dst); err != nil {
		return fmt.Errorf("local: couldn't copy file %q to %q: %w", path, dst, err)
	}
	return nil
}

// URL returns the absolute path of the stored file, which serves as the
// durable reference for local storage.
func (s *store) URL(ctx context.Context, name string) (string, error) {
	abs, err := filepath.Abs(filepath.Join(s.root, name))
	if err != nil {
		return "", fmt.Errorf("local: couldn't resolve path for %q: %w", name, err)
	}
	return abs, nil
}

func copyFile(src, dst string) error {
	// Open the source file for reading
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	// Get the file information of the source file to obtain its permissions
	srcFileInfo, err := srcFile.Stat()
	if err != nil {
		return err
	}

	// Open the destination file for writing. If it does not exist, create it with
	// the same permissions as the source file. If it exists, truncate it.
	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcFileInfo.Mode())
	if err != nil {
		return err
	}
	defer dstFile.Close()

	// Copy the content from the source file to the destination file
	_, err = io.Copy(dstFile, srcFile)
	return err
}
