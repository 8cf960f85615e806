package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type Stored struct {
	// Key names the file inside the upload directory.
	Key  string
	Name string
	URL  string
	Type string
	Size int64
}

// Local keeps uploads on disk under Dir and serves them below URLPrefix.
type Local struct {
	Dir       string
	URLPrefix string
}

func NewLocal(dir, urlPrefix string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}, nil
}

// Save copies the upload to disk. A failed copy leaves no file behind.
func (l *Local) Save(ctx context.Context, fh *multipart.FileHeader) (out Stored, err error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	src, err := fh.Open()
	if err != nil {
		return Stored{}, err
	}
	defer src.Close()

	original := filepath.Base(fh.Filename)
	key := uuid.NewString() + strings.ToLower(filepath.Ext(original))
	path := filepath.Join(l.Dir, key)
	dst, err := os.Create(path)
	if err != nil {
		return Stored{}, err
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return Stored{}, err
	}
	head = head[:n]
	if _, err := dst.Write(head); err != nil {
		return Stored{}, err
	}
	rest, err := io.Copy(dst, src)
	if err != nil {
		return Stored{}, err
	}

	return Stored{
		Key:  key,
		Name: original,
		URL:  l.URLPrefix + "/" + key,
		Type: contentType(fh, original, head),
		Size: int64(n) + rest,
	}, nil
}

// Remove deletes a stored upload. Missing files are not an error.
func (l *Local) Remove(key string) error {
	err := os.Remove(filepath.Join(l.Dir, filepath.Base(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// RemoveAll deletes every upload in stored and returns the first failure.
func (l *Local) RemoveAll(stored []Stored) error {
	var first error
	for _, s := range stored {
		if err := l.Remove(s.Key); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func contentType(fh *multipart.FileHeader, name string, head []byte) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(head)
}
