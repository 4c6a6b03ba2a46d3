package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/gocarina/gocsv"
)

var (
	requiredColumns = []string{"image_id", "dx"}
	utf8BOM         = []byte("\xef\xbb\xbf")
)

// LoadMetadata reads the lesion metadata CSV at path.
//
// The file must have a header row containing at least image_id and dx; the
// other HAM10000 columns are optional. Every row must name a non-empty
// image_id and dx, and image ids must be unique.
func LoadMetadata(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataSourceError(path, 0, "cannot open metadata", err)
	}
	defer f.Close()
	return ReadMetadata(f, path)
}

// ReadMetadata parses metadata CSV from r. name is used in error messages.
func ReadMetadata(r io.Reader, name string) ([]Record, error) {
	logger := log.Component("dataset").With(log.StageKey, log.StageMetadata, log.PathKey, name)

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewDataSourceError(name, 0, "cannot read metadata", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NewDataSourceError(name, 0, "metadata is empty", errors.ErrEmptyData)
	}
	if err := checkHeader(data, name); err != nil {
		return nil, err
	}

	rows := []*Record{}
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, errors.NewDataSourceError(name, 0, "malformed metadata", err)
	}
	if len(rows) == 0 {
		return nil, errors.NewDataSourceError(name, 0, "metadata has a header but no records", errors.ErrEmptyData)
	}

	records := make([]Record, len(rows))
	seen := make(map[string]int, len(rows))
	for i, row := range rows {
		rec := *row
		rec.ImageID = strings.TrimSpace(rec.ImageID)
		rec.Dx = strings.TrimSpace(rec.Dx)
		rec.Label = NoLabel
		switch {
		case rec.ImageID == "":
			return nil, errors.NewDataSourceError(name, i+1, "empty image_id", nil)
		case rec.Dx == "":
			return nil, errors.NewDataSourceError(name, i+1, "empty dx for image "+rec.ImageID, nil)
		}
		if first, ok := seen[rec.ImageID]; ok {
			return nil, errors.NewDataSourceError(name, i+1,
				"duplicate image_id "+rec.ImageID+" (first seen in row "+strconv.Itoa(first)+")", nil)
		}
		seen[rec.ImageID] = i + 1
		records[i] = rec
	}

	logger.Info("metadata loaded", log.SamplesKey, len(records))
	return records, nil
}

func checkHeader(data []byte, name string) error {
	header, err := csv.NewReader(bytes.NewReader(data)).Read()
	if err != nil {
		return errors.NewDataSourceError(name, 0, "cannot read header", err)
	}
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	for _, col := range requiredColumns {
		if !have[col] {
			return errors.NewDataSourceError(name, 0, "missing required column "+col, nil)
		}
	}
	return nil
}
