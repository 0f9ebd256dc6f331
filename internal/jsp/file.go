// Package jsp (JSON persistence) provides write-then-rename helpers for
// APOLLO's on-disk configuration files.
package jsp

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Save pretty-prints v as JSON and writes it to filepath using a temp-file
// plus rename, so a crash mid-write cannot truncate the previous contents.
func Save(filepath string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", filepath)
	}
	return writeThenRename(filepath, b)
}

// Load reads and JSON-decodes filepath into v.
func Load(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "decode %s", path)
	}
	return nil
}

// WriteBytes writes raw bytes to filepath using the same temp-file plus
// rename discipline as Save, for callers persisting non-JSON payloads
// (e.g. the encrypted credential store).
func WriteBytes(filepath string, b []byte) error {
	return writeThenRename(filepath, b)
}

// Exists reports whether path already exists on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func writeThenRename(path string, b []byte) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp."+strconv.FormatInt(time.Now().UnixNano(), 36))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrapf(err, "create temp file for %s", path)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "write temp file for %s", path)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "sync temp file for %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "close temp file for %s", path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "rename temp file into %s", path)
	}
	return nil
}
