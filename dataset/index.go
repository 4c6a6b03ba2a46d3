package dataset

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
)

// ImageIndex maps image ids (file names without extension) to file paths in a
// single directory.
type ImageIndex struct {
	Dir   string
	paths map[string]string
	dups  map[string][]string
}

// IndexImages lists dir once and indexes every regular file by its base name
// without extension. Names are visited in lexicographic order and the first
// file for an id wins, so ISIC_1.jpg is preferred over ISIC_1.png. Every
// shadowed file is reported through a DuplicateImageWarning.
func IndexImages(dir string) (*ImageIndex, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.NewDataSourceError(dir, 0, "cannot list image directory", err)
	}
	// os.ReadDir already sorts by file name.
	ix := &ImageIndex{
		Dir:   dir,
		paths: make(map[string]string, len(entries)),
		dups:  make(map[string][]string),
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		name := e.Name()
		id := strings.TrimSuffix(name, filepath.Ext(name))
		path := filepath.Join(dir, name)
		if _, ok := ix.paths[id]; ok {
			ix.dups[id] = append(ix.dups[id], path)
			continue
		}
		ix.paths[id] = path
	}

	ids := make([]string, 0, len(ix.dups))
	for id := range ix.dups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		errors.Warn(errors.NewDuplicateImageWarning(id, ix.paths[id], ix.dups[id]))
	}

	log.Component("dataset").Info("image directory indexed",
		log.StageKey, log.StageImages,
		log.PathKey, dir,
		log.CountKey, len(ix.paths),
	)
	return ix, nil
}

// Lookup returns the path indexed for id.
func (ix *ImageIndex) Lookup(id string) (string, bool) {
	p, ok := ix.paths[id]
	return p, ok
}

// Len returns the number of distinct ids.
func (ix *ImageIndex) Len() int {
	return len(ix.paths)
}

// Duplicates returns, per id, the files that were ignored in favour of the indexed one.
func (ix *ImageIndex) Duplicates() map[string][]string {
	out := make(map[string][]string, len(ix.dups))
	for id, paths := range ix.dups {
		out[id] = append([]string(nil), paths...)
	}
	return out
}

// ResolvePaths returns a copy of records with Path set from ix.
//
// All ids are checked before anything else happens. When some are missing,
// the error names the first missing id in record order and carries the total
// number of missing ids.
func ResolvePaths(records []Record, ix *ImageIndex) ([]Record, error) {
	out := make([]Record, len(records))
	firstMissing := ""
	missing := 0
	for i, r := range records {
		p, ok := ix.paths[r.ImageID]
		if !ok {
			if missing == 0 {
				firstMissing = r.ImageID
			}
			missing++
			continue
		}
		r.Path = p
		out[i] = r
	}
	if missing > 0 {
		return nil, errors.NewImageNotFoundError(firstMissing, ix.Dir, missing)
	}
	return out, nil
}
