// Package fsafe provides the file primitives used around conversions:
// bounded reads, path traversal guards, collision-free naming and atomic
// writes that never leave a partial file behind.
package fsafe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrPathTraversal is returned when a user-supplied path escapes its base.
var ErrPathTraversal = errors.New("fsafe: path traversal detected")

// ErrTooLarge is returned when a read exceeds its byte limit.
var ErrTooLarge = errors.New("fsafe: size limit exceeded")

// ErrWrite wraps every failure of an atomic write.
var ErrWrite = errors.New("fsafe: write failed")

// maxUniqueAttempts bounds the "name N.ext" search.
const maxUniqueAttempts = 10_000

// SafePath validates that joining base and userInput does not escape base.
// A ".." segment anywhere in userInput is refused outright. Returns the
// cleaned path or ErrPathTraversal.
func SafePath(base, userInput string) (string, error) {
	for _, seg := range strings.FieldsFunc(userInput, isSeparator) {
		if seg == ".." {
			return "", ErrPathTraversal
		}
	}
	cleaned := filepath.Join(base, filepath.Clean("/"+userInput))
	rel, err := filepath.Rel(filepath.Clean(base), cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathTraversal
	}
	return cleaned, nil
}

func isSeparator(r rune) bool { return r == '/' || r == '\\' }

// LimitedReadAll reads at most maxBytes from r. Returns ErrTooLarge if the
// limit is exceeded.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// ReadFileLimited reads a whole file, refusing anything larger than maxBytes.
// The size is checked before reading when the file reports one.
func ReadFileLimited(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fi, err := f.Stat(); err == nil {
		if fi.IsDir() {
			return nil, fmt.Errorf("fsafe: %s is a directory", path)
		}
		if fi.Size() > maxBytes {
			return nil, fmt.Errorf("%w: %s is %d bytes (max %d)", ErrTooLarge, path, fi.Size(), maxBytes)
		}
	}
	return LimitedReadAll(f, maxBytes)
}

// UniqueName returns name if dir has no entry by that name, otherwise the
// first free "stem N.ext" with N counting from 1.
func UniqueName(dir, name string) (string, error) {
	if !exists(filepath.Join(dir, name)) {
		return name, nil
	}
	for n := 1; n <= maxUniqueAttempts; n++ {
		candidate := numbered(name, n)
		if !exists(filepath.Join(dir, candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("fsafe: no free name for %q in %s", name, dir)
}

// numbered inserts " n" before the extension: "report.pdf" -> "report 2.pdf".
func numbered(name string, n int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		// Dotfiles such as ".env" have no stem.
		stem, ext = name, ""
	}
	return stem + " " + strconv.Itoa(n) + ext
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

// WriteFileAtomic writes data to a temporary file in the destination
// directory, syncs it and renames it over path. On failure the temporary
// file is removed and path is left untouched.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := writeTemp(filepath.Dir(path), filepath.Base(path), data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename %s: %v", ErrWrite, path, err)
	}
	return nil
}

// WriteFileUnique writes data under dir with the first free variant of name
// (see UniqueName) and returns the path written. An existing file is never
// replaced: the final step is a hard link that fails if another writer took
// the name first, in which case the next free name is tried.
func WriteFileUnique(dir, name string, data []byte, perm os.FileMode) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: mkdir %s: %v", ErrWrite, dir, err)
	}
	tmp, err := writeTemp(dir, name, data, perm)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	for attempt := 0; attempt < maxUniqueAttempts; attempt++ {
		candidate, err := UniqueName(dir, name)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrWrite, err)
		}
		target, err := SafePath(dir, candidate)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrWrite, candidate, err)
		}
		err = os.Link(tmp, target)
		if err == nil {
			return target, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		// Filesystems without hard links: fall back to a plain rename.
		if err := os.Rename(tmp, target); err != nil {
			return "", fmt.Errorf("%w: rename %s: %v", ErrWrite, target, err)
		}
		return target, nil
	}
	return "", fmt.Errorf("%w: no free name for %q in %s", ErrWrite, name, dir)
}

func writeTemp(dir, name string, data []byte, perm os.FileMode) (string, error) {
	f, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp in %s: %v", ErrWrite, dir, err)
	}
	tmp := f.Name()
	fail := func(op string, err error) (string, error) {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("%w: %s %s: %v", ErrWrite, op, tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		return fail("write", err)
	}
	if err := f.Chmod(perm); err != nil {
		return fail("chmod", err)
	}
	if err := f.Sync(); err != nil {
		return fail("sync", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("%w: close %s: %v", ErrWrite, tmp, err)
	}
	return tmp, nil
}
