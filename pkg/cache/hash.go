package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// hashChunkSize is the read block size for file hashing.
const hashChunkSize = 64 * 1024

// FileHash returns the hex SHA-256 of one file's contents, read in chunks.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// skipEntry reports whether a directory entry is excluded from directory
// hashing: hidden files and directories, local state files, and backups.
// These change as a side effect of running the engine and must not
// invalidate the cache.
func skipEntry(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if name == "terraform.tfstate" || strings.HasPrefix(name, "terraform.tfstate.") {
		return true
	}
	return strings.HasSuffix(name, ".backup")
}

// DirHash returns the hex SHA-256 over the relative path and contents of
// every non-excluded file under dir, walked in stable sorted order. Two
// directories with identical trees hash identically regardless of where
// they live or when they are hashed.
func DirHash(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		if skipEntry(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(files)

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	for _, path := range files {
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return "", err
		}
		// Relative paths keep the hash stable across directory moves;
		// forward slashes keep it stable across platforms.
		io.WriteString(h, filepath.ToSlash(rel))
		h.Write([]byte{0})

		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", path, err)
		}
		if _, err := io.CopyBuffer(h, f, buf); err != nil {
			f.Close()
			return "", fmt.Errorf("hashing %s: %w", path, err)
		}
		f.Close()
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
