// Package sessionstore provides the durable backends of the Session State record.
package sessionstore

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/session"
)

// FilePersister keeps the Session State record in a local file (used by the admin CLI).
type FilePersister struct {
	path string
}

var _ session.Persister = (*FilePersister)(nil)

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Load returns the stored record. A missing file is an empty record.
func (p *FilePersister) Load() ([]byte, error) {
	data, err := ioutil.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading session file")
	}
	return data, nil
}

// Save replaces the record atomically.
func (p *FilePersister) Save(data []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}

	tmp, err := ioutil.TempFile(dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "creating temp session file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op once renamed

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing session file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing session file")
	}
	if err = os.Chmod(tmp.Name(), 0600); err != nil {
		return errors.Wrap(err, "chmod session file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), p.path), "replacing session file")
}
