package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var ErrEmptyUpload = errors.New("empty upload")

// Ref is where a stored attachment can be fetched from and what it contains.
type Ref struct {
	Path        string
	ContentType string
}

type AttachmentStore interface {
	Save(name string, r io.Reader) (Ref, error)
	Delete(ref Ref) error
}

// LocalStore keeps attachments on disk under random names. Files are served
// back under publicPrefix.
type LocalStore struct {
	dir          string
	publicPrefix string
	maxBytes     int64
}

func NewLocalStore(dir, publicPrefix string, maxBytes int64) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{
		dir:          dir,
		publicPrefix: strings.TrimRight(publicPrefix, "/"),
		maxBytes:     maxBytes,
	}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Save writes r to disk and sniffs its content type from the bytes. The stored
// extension also comes from the sniffed type; name is never used for the path.
func (s *LocalStore) Save(name string, r io.Reader) (Ref, error) {
	file := uuid.NewString()
	path := filepath.Join(s.dir, file)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Ref{}, err
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	switch {
	case err != nil:
		_ = os.Remove(path)
		return Ref{}, err
	case n == 0:
		_ = os.Remove(path)
		return Ref{}, ErrEmptyUpload
	case s.maxBytes > 0 && n > s.maxBytes:
		_ = os.Remove(path)
		return Ref{}, fmt.Errorf("attachment exceeds %d bytes", s.maxBytes)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		_ = os.Remove(path)
		return Ref{}, err
	}

	if ext := mt.Extension(); ext != "" {
		if err := os.Rename(path, path+ext); err != nil {
			_ = os.Remove(path)
			return Ref{}, err
		}
		file += ext
	}

	contentType, _, _ := strings.Cut(mt.String(), ";")
	return Ref{
		Path:        s.publicPrefix + "/" + file,
		ContentType: strings.TrimSpace(contentType),
	}, nil
}

// Delete removes a stored attachment. Missing files are not an error.
func (s *LocalStore) Delete(ref Ref) error {
	file := filepath.Base(ref.Path)
	if file == "." || file == "/" || !strings.HasPrefix(ref.Path, s.publicPrefix+"/") {
		return fmt.Errorf("attachment %q is not stored here", ref.Path)
	}
	err := os.Remove(filepath.Join(s.dir, file))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
