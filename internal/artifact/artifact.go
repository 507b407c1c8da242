// Package artifact persists stage outputs as JSON files so the pipeline can
// be run one stage at a time. Names ending in ".gz" are gzip-compressed.
package artifact

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog/log"
)

// Dir reads and writes artifacts under a single directory.
type Dir struct {
	Path string
}

// NewDir returns a Dir rooted at path, creating it if needed.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create artifact dir %s", path)
	}
	return &Dir{Path: path}, nil
}

func compressed(name string) bool {
	return strings.HasSuffix(name, ".gz")
}

// Write encodes v as indented JSON into name, replacing any previous file.
func (d *Dir) Write(name string, v any) error {
	target := filepath.Join(d.Path, name)
	tmp, err := os.CreateTemp(d.Path, "."+name+".*")
	if err != nil {
		return errors.Wrapf(err, "write artifact %s", name)
	}
	defer os.Remove(tmp.Name())

	var w io.Writer = tmp
	var zw *gzip.Writer
	if compressed(name) {
		zw = gzip.NewWriter(tmp)
		w = zw
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "encode artifact %s", name)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			tmp.Close()
			return errors.Wrapf(err, "compress artifact %s", name)
		}
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write artifact %s", name)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return errors.Wrapf(err, "write artifact %s", name)
	}
	log.Debug().Str("artifact", target).Msg("Artifact written")
	return nil
}

// Read decodes name into v.
func (d *Dir) Read(name string, v any) error {
	f, err := os.Open(filepath.Join(d.Path, name))
	if err != nil {
		return errors.WithHint(
			errors.Wrapf(err, "read artifact %s", name),
			"run the stage that produces it first, with the same artifacts.dir",
		)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed(name) {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "decompress artifact %s", name)
		}
		defer zr.Close()
		r = zr
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrapf(err, "decode artifact %s", name)
	}
	return nil
}
