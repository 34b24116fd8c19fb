package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/edustats/dropout/pkg/errors"
)

// SaveModel writes a fitted estimator to a file using gob encoding. The
// estimator's exported fields must be gob-encodable.
func SaveModel(model interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create model file")
	}
	defer file.Close()

	return SaveModelToWriter(model, file)
}

// LoadModel reads a previously saved estimator from a file into model, which
// must be a pointer to the matching concrete type.
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open model file")
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter gob-encodes an estimator to w.
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader gob-decodes an estimator from r.
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
