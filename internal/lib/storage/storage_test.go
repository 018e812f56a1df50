package storage

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owlSample = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:owl="http://www.w3.org/2002/07/owl#">
  <owl:Class rdf:about="http://example.org/onto#A"/>
</rdf:RDF>`

func TestSave(t *testing.T) {
	store := NewFileStore(t.TempDir())

	stored, err := store.Save("GO", 2, "go.owl", strings.NewReader(owlSample))
	require.NoError(t, err)

	sum := md5.Sum([]byte(owlSample))
	assert.Equal(t, filepath.Join(store.Root(), "GO", "2", "go.owl"), stored.Path)
	assert.Equal(t, int64(len(owlSample)), stored.Size)
	assert.Equal(t, hex.EncodeToString(sum[:]), stored.MD5)
	assert.Contains(t, stored.ContentType, "xml")

	f, err := store.Open(stored.Path)
	require.NoError(t, err)
	defer f.Close()

	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, owlSample, string(content))
}

func TestSaveStripsDirectories(t *testing.T) {
	store := NewFileStore(t.TempDir())

	stored, err := store.Save("GO", 1, "../../etc/passwd", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "GO", "1", "passwd"), stored.Path)

	_, err = store.Save("GO", 1, "", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidFilename)
}

func TestOpenRefusesOutsideRoot(t *testing.T) {
	store := NewFileStore(t.TempDir())

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))

	_, err := store.Open(outside)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRemove(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, err := store.Save("GO", 1, "a.obo", strings.NewReader("format-version: 1.2"))
	require.NoError(t, err)
	_, err = store.Save("GO", 2, "b.obo", strings.NewReader("format-version: 1.2"))
	require.NoError(t, err)

	require.NoError(t, store.RemoveSubmission("GO", 1))
	assert.NoDirExists(t, filepath.Join(store.Root(), "GO", "1"))
	assert.DirExists(t, filepath.Join(store.Root(), "GO", "2"))

	require.NoError(t, store.RemoveOntology("GO"))
	assert.NoDirExists(t, filepath.Join(store.Root(), "GO"))
}

func TestRemoveFile(t *testing.T) {
	store := NewFileStore(t.TempDir())

	a, err := store.Save("GO", 1, "a.obo", strings.NewReader("a"))
	require.NoError(t, err)
	b, err := store.Save("GO", 1, "b.obo", strings.NewReader("b"))
	require.NoError(t, err)

	require.NoError(t, store.Remove(b.Path))
	assert.NoFileExists(t, b.Path)
	assert.FileExists(t, a.Path, "other files of the submission stay")

	require.NoError(t, store.Remove(a.Path))
	assert.NoDirExists(t, filepath.Join(store.Root(), "GO", "1"), "empty folder is removed")

	outside := filepath.Join(t.TempDir(), "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	assert.ErrorIs(t, store.Remove(outside), os.ErrNotExist)
	assert.FileExists(t, outside)
}
