// Package blobstore stores uploaded medicine images. Objects are addressed by
// a flat key (the generated file name) and exposed to clients under
// /uploads/<key> regardless of the backend.
package blobstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("only image files are allowed")
	ErrInvalidKey         = errors.New("invalid blob key")
)

// MaxImageSize bounds a single uploaded medicine photo.
const MaxImageSize = 5 << 20

// URLPrefix is the public path uploaded objects are served from.
const URLPrefix = "/uploads/"

var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

type Object struct {
	Key         string
	ContentType string
	Size        int64
	ModTime     time.Time
}

type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	// Delete returns ErrBlobNotFound when the key does not exist.
	Delete(ctx context.Context, key string) error
}

var safeKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidKey rejects keys that could escape the storage root.
func ValidKey(key string) bool {
	return len(key) <= 255 && safeKey.MatchString(key) && !strings.Contains(key, "..")
}

// URLFor returns the public URL path for key.
func URLFor(key string) string {
	return URLPrefix + key
}

// KeyFromURL extracts the object key from a stored image URL, which may be a
// relative "/uploads/x.jpg" path or an absolute URL. ok is false when no
// usable key can be derived.
func KeyFromURL(raw string) (key string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if i := strings.Index(raw, "://"); i >= 0 {
		rest := raw[i+3:]
		slash := strings.Index(rest, "/")
		if slash < 0 {
			return "", false
		}
		raw = rest[slash:]
	}
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	key = path.Base(raw)
	if !ValidKey(key) {
		return "", false
	}
	return key, true
}

// Upload is a validated image read from a multipart form.
type Upload struct {
	Key         string
	Filename    string
	ContentType string
	Size        int64
	Data        []byte
}

// ReadImage validates an uploaded image and assigns it a unique key.
func ReadImage(fh *multipart.FileHeader) (*Upload, error) {
	if fh.Size > MaxImageSize {
		return nil, ErrFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, ErrFileTooLarge
	}

	contentType := http.DetectContentType(data)
	ext, ok := AllowedImageTypes[contentType]
	if !ok {
		return nil, ErrInvalidContentType
	}

	return &Upload{
		Key:         NewKey("medicine", ext),
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

// NewKey builds "<prefix>-<unix millis>-<random>.<ext>".
func NewKey(prefix, ext string) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s-%d-%s%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(b), ext)
}

// MemoryStore keeps objects in memory. Used in tests and local development
// without a writable disk.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data []byte
	meta Object
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memObject)}
}

func (s *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if !ValidKey(key) {
		return ErrInvalidKey
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{
		data: data,
		meta: Object{Key: key, ContentType: contentType, Size: int64(len(data)), ModTime: time.Now()},
	}
	return nil
}

func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, *Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := obj.meta
	return io.NopCloser(bytes.NewReader(obj.data)), &meta, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}
