// Package storage keeps uploaded ontology files on the local filesystem,
// laid out as {root}/{acronym}/{submissionId}/{filename}.
package storage

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrInvalidFilename is returned for names that would escape the submission folder.
var ErrInvalidFilename = errors.New("invalid file name")

// StoredFile describes a file copied into the repository.
type StoredFile struct {
	Path        string
	Size        int64
	MD5         string
	ContentType string
}

type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root is the folder every file is stored under.
func (s *FileStore) Root() string {
	return s.root
}

func (s *FileStore) submissionDir(acronym string, submissionID int) string {
	return filepath.Join(s.root, acronym, strconv.Itoa(submissionID))
}

// Save copies r into the submission folder, computing size, MD5 and the
// detected content type on the way.
func (s *FileStore) Save(acronym string, submissionID int, filename string, r io.Reader) (*StoredFile, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, ErrInvalidFilename
	}

	dir := s.submissionDir(acronym, submissionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating submission folder: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	hash := md5.New()
	detector := &headBuffer{limit: 3072}

	size, err := io.Copy(io.MultiWriter(f, hash, detector), r)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("copying upload to %s: %w", path, err)
	}

	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("syncing %s: %w", path, err)
	}

	return &StoredFile{
		Path:        path,
		Size:        size,
		MD5:         hex.EncodeToString(hash.Sum(nil)),
		ContentType: mimetype.Detect(detector.buf).String(),
	}, nil
}

// Open opens a stored file for reading. Paths outside the root are refused.
func (s *FileStore) Open(path string) (*os.File, error) {
	if !s.contains(path) {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return os.Open(path)
}

// Remove deletes one stored file, and its submission folder when that is
// left empty.
func (s *FileStore) Remove(path string) error {
	if !s.contains(path) {
		return fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	_ = os.Remove(filepath.Dir(path))
	return nil
}

// RemoveSubmission deletes the folder of one submission.
func (s *FileStore) RemoveSubmission(acronym string, submissionID int) error {
	return os.RemoveAll(s.submissionDir(acronym, submissionID))
}

// RemoveOntology deletes every stored file of an ontology.
func (s *FileStore) RemoveOntology(acronym string) error {
	return os.RemoveAll(filepath.Join(s.root, acronym))
}

func (s *FileStore) contains(path string) bool {
	root, err := filepath.Abs(s.root)
	if err != nil {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// headBuffer keeps the first bytes written to it for content sniffing.
type headBuffer struct {
	buf   []byte
	limit int
}

func (h *headBuffer) Write(p []byte) (int, error) {
	if room := h.limit - len(h.buf); room > 0 {
		h.buf = append(h.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}
