// Copyright 2026 The Chessagon Authors
// SPDX-License-Identifier: Apache-2.0

package bucket

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/Tocutoeltuco/chessagon/lib/codec"
)

// File extensions for the two halves of a stored object. The metadata
// sidecar is what makes List cheap: a sweep reads only *.meta files
// and never decompresses a body.
const (
	bodyExtension = ".body"
	metaExtension = ".meta"
)

// NewDir opens (creating if needed) a directory-backed Store rooted at
// root. Keys of the form "prefix:rest" map to root/prefix/rest; bodies
// are zstd-compressed, metadata is a CBOR map in a sidecar file.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root %s: %w", root, err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("initializing zstd decoder: %w", err)
	}

	return &Dir{root: root, encoder: encoder, decoder: decoder}, nil
}

// Dir is a filesystem Store implementation. Writes go through a
// temp-file-then-rename sequence so a crash mid-write never leaves a
// half-written object behind. The metadata sidecar is renamed into
// place after the body, so an object listed by a sweep always has a
// complete body on disk.
type Dir struct {
	root    string
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Head reports whether an object exists at key.
func (d *Dir) Head(_ context.Context, key string) (bool, error) {
	path, err := d.objectPath(key)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(path + metaExtension)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, fmt.Errorf("probing object %s: %w", key, statErr)
}

// Get returns the object at key, or ErrNotFound.
func (d *Dir) Get(_ context.Context, key string) (*Object, error) {
	path, err := d.objectPath(key)
	if err != nil {
		return nil, err
	}

	rawMeta, err := os.ReadFile(path + metaExtension)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading metadata for %s: %w", key, err)
	}
	var metadata map[string]string
	if err := codec.Unmarshal(rawMeta, &metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata for %s: %w", key, err)
	}

	compressed, err := os.ReadFile(path + bodyExtension)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading body for %s: %w", key, err)
	}
	body, err := d.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing body for %s: %w", key, err)
	}

	return &Object{Body: body, Metadata: metadata}, nil
}

// Put stores body and metadata at key, overwriting unconditionally.
func (d *Dir) Put(_ context.Context, key string, body []byte, metadata map[string]string) error {
	path, err := d.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating prefix directory for %s: %w", key, err)
	}

	compressed := d.encoder.EncodeAll(body, nil)
	if err := writeAtomic(path+bodyExtension, compressed); err != nil {
		return fmt.Errorf("writing body for %s: %w", key, err)
	}

	rawMeta, err := codec.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", key, err)
	}
	if err := writeAtomic(path+metaExtension, rawMeta); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", key, err)
	}
	return nil
}

// Delete removes the object at key. Removing a nonexistent key
// succeeds. The metadata sidecar goes first so a concurrent List
// never reports an object whose body is already gone.
func (d *Dir) Delete(_ context.Context, key string) error {
	path, err := d.objectPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path + metaExtension); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting metadata for %s: %w", key, err)
	}
	if err := os.Remove(path + bodyExtension); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting body for %s: %w", key, err)
	}
	return nil
}

// List returns the key and metadata of every stored object. Only
// sidecar files are read; bodies stay untouched.
func (d *Dir) List(_ context.Context) ([]Entry, error) {
	prefixes, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing store root: %w", err)
	}

	var entries []Entry
	for _, prefix := range prefixes {
		if !prefix.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(d.root, prefix.Name()))
		if err != nil {
			return nil, fmt.Errorf("listing prefix %s: %w", prefix.Name(), err)
		}
		for _, file := range files {
			name, found := strings.CutSuffix(file.Name(), metaExtension)
			if !found {
				continue
			}
			rawMeta, err := os.ReadFile(filepath.Join(d.root, prefix.Name(), file.Name()))
			if err != nil {
				if os.IsNotExist(err) {
					// Deleted between ReadDir and ReadFile.
					continue
				}
				return nil, fmt.Errorf("reading metadata sidecar %s: %w", file.Name(), err)
			}
			var metadata map[string]string
			if err := codec.Unmarshal(rawMeta, &metadata); err != nil {
				return nil, fmt.Errorf("decoding metadata sidecar %s: %w", file.Name(), err)
			}
			entries = append(entries, Entry{
				Key:      prefix.Name() + ":" + name,
				Metadata: metadata,
			})
		}
	}
	return entries, nil
}

// objectPath validates key and maps it to a filesystem path without
// extensions. Keys must be "prefix:rest" with both halves alphanumeric
// — anything else could escape the store root.
func (d *Dir) objectPath(key string) (string, error) {
	prefix, rest, found := strings.Cut(key, ":")
	if !found || !isAlphanumeric(prefix) || !isAlphanumeric(rest) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(d.root, prefix, rest), nil
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// writeAtomic writes data to path via a temp file and rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".write-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
