package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStore(t *testing.T) {
	dir := t.TempDir()
	store, err := New("local", filepath.Join(dir, "files"), false)
	if err != nil {
		t.Fatalf("New() err = %v; want nil", err)
	}
	ctx := context.Background()

	src := filepath.Join(dir, "src.mp3")
	if err := os.WriteFile(src, []byte("audio-bytes"), 0644); err != nil {
		t.Fatalf("couldn't write source file: %v", err)
	}
	if err := store.Upload(ctx, src, "song_track1.mp3"); err != nil {
		t.Fatalf("Upload() err = %v; want nil", err)
	}

	ref, err := store.URL(ctx, "song_track1.mp3")
	if err != nil {
		t.Fatalf("URL() err = %v; want nil", err)
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		t.Fatalf("couldn't read stored file: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Fatalf("stored content = %q; want %q", data, "audio-bytes")
	}

	// Uploads overwrite an existing name.
	if err := os.WriteFile(src, []byte("new-bytes"), 0644); err != nil {
		t.Fatalf("couldn't rewrite source file: %v", err)
	}
	if err := store.Upload(ctx, src, "song_track1.mp3"); err != nil {
		t.Fatalf("Upload() err = %v; want nil", err)
	}
	data, err = os.ReadFile(ref)
	if err != nil {
		t.Fatalf("couldn't read stored file: %v", err)
	}
	if string(data) != "new-bytes" {
		t.Fatalf("stored content = %q; want %q", data, "new-bytes")
	}
}

func TestNewErrors(t *testing.T) {
	tests := []struct {
		name string
		typ  string
		conn string
	}{
		{name: "unknown type", typ: "ftp", conn: "whatever"},
		{name: "invalid s3 conn", typ: "s3", conn: "missing-separator"},
		{name: "invalid s3 auth", typ: "s3", conn: "keyonly@bucket.region"},
		{name: "invalid s3 location", typ: "s3", conn: "key:secret@bucketregion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.typ, tt.conn, false); err == nil {
				t.Fatal("New() err = nil; want error")
			}
		})
	}
}
