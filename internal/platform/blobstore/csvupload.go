package blobstore

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
)

var ErrNotCSV = errors.New("upload is not a csv file")

// DefaultMaxCSVSize applies when MAX_CSV_FILE_SIZE is unset.
const DefaultMaxCSVSize = 2 << 20

var csvMimeTypes = map[string]bool{
	"text/csv":                 true,
	"application/vnd.ms-excel": true,
	"application/csv":          true,
	"text/plain":               true,
}

// IsCSV accepts a file when either its declared MIME type or its extension
// marks it as CSV.
func IsCSV(filename, contentType string) bool {
	mt := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if csvMimeTypes[mt] {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

// ReadCSV checks an uploaded registry file against the CSV guard and returns
// its contents. The file is held in memory only.
func ReadCSV(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxCSVSize
	}
	if !IsCSV(fh.Filename, fh.Header.Get("Content-Type")) {
		return nil, ErrNotCSV
	}
	if fh.Size > maxSize {
		return nil, ErrFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
