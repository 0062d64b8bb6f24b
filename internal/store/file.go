package store

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// File persists a snapshot as a JSON file. Writes go to a temp file in the
// same directory and are renamed into place, so a reader never observes a
// torn document even if the process dies mid-write.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(_ context.Context, v any) error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return persistErr("read "+f.path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return persistErr("decode "+f.path, err)
	}
	return nil
}

func (f *File) Save(_ context.Context, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return persistErr("encode "+f.path, err)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return persistErr("create temp for "+f.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return persistErr("write "+f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return persistErr("close "+f.path, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return persistErr("replace "+f.path, err)
	}
	return nil
}
