package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
)

// SaveModel gob-encodes model into filename. The file is written to a temporary
// sibling first and renamed, so a failed save never leaves a truncated artifact.
//
// Concrete types stored behind interfaces must be registered with gob.Register.
//
// Example:
//
//	err := model.SaveModel(bundle, "my_model.gob")
func SaveModel(model interface{}, filename string) error {
	dir := filepath.Dir(filename)
	tmp, err := os.CreateTemp(dir, filepath.Base(filename)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "create model file in %s", dir)
	}
	defer os.Remove(tmp.Name())

	if err := SaveModelToWriter(model, tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "rename model file to %s", filename)
	}
	return nil
}

// LoadModel decodes a gob-encoded model from filename into model, which must be a pointer.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewDataSourceError(filename, 0, "cannot open model file", err)
	}
	defer file.Close()

	if err := LoadModelFromReader(model, file); err != nil {
		return errors.NewDataSourceError(filename, 0, "cannot decode model", err)
	}
	return nil
}

// SaveModelToWriter gob-encodes model to w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "encode model")
	}
	return nil
}

// LoadModelFromReader decodes a gob-encoded model from r.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "decode model")
	}
	return nil
}
