package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"

	"github.com/fpang/doc-ingest-pipeline/internal/config"
)

// Discover walks root recursively and returns every regular file whose
// extension is in extensions, compared case-insensitively. Entries come back
// in lexical walk order, so an unchanged tree always yields the same
// manifest. Symlinks to files are followed; symlinks to directories are
// skipped to avoid cycles. Unreadable subtrees are logged and skipped.
//
// A missing root is an error. An empty manifest is not.
func Discover(root string, extensions []string) ([]ManifestEntry, error) {
	exts := config.NormalizeExtensions(extensions)
	accepted := make(map[string]bool, len(exts))
	for _, ext := range exts {
		accepted[ext] = true
	}

	log.Info().
		Str("path", root).
		Strs("extensions", exts).
		Msg("Discovering documents")

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("documents directory not found: %s", root)
		}
		return nil, errors.Wrapf(err, "stat documents directory %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Newf("documents path is not a directory: %s", root)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrap(err, "resolve documents directory")
	}

	manifest := []ManifestEntry{}
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == absRoot {
				return walkErr
			}
			log.Warn().Err(walkErr).Str("path", path).Msg("Error accessing path, skipping")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !accepted[ext] {
			return nil
		}

		fi, err := os.Stat(path) // follows file symlinks
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to stat file, skipping")
			return nil
		}
		if fi.IsDir() {
			log.Debug().Str("path", path).Msg("Skipping symlink to directory")
			return nil
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		manifest = append(manifest, ManifestEntry{
			RelPath: filepath.ToSlash(rel),
			AbsPath: path,
			Size:    fi.Size(),
			Ext:     ext,
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walk documents directory %s", root)
	}

	log.Info().
		Int("total_documents", len(manifest)).
		Str("directory", absRoot).
		Msg("Discovery complete")
	return manifest, nil
}
