package report

import (
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"sort"

	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"golang.org/x/image/draw"
)

// gridGap is the border in pixels around every tile.
const gridGap = 2

// SampleGridSeed is the seed the pipeline uses for picking grid samples.
const SampleGridSeed = 1234

// SampleGrid tiles up to perClass loaded images of every class, one row per
// diagnosis code in code order. Samples are drawn without replacement with
// seed; a class with fewer records shows all of them.
func SampleGrid(records []dataset.Record, perClass int, seed int64) (*image.RGBA, error) {
	if perClass <= 0 {
		return nil, errors.NewValidationError("per_class", "must be positive", perClass)
	}
	groups := make(map[string][]int)
	var codes []string
	tile := 0
	for i, r := range records {
		if r.Image == nil {
			return nil, errors.NewValueError("SampleGrid", "record "+r.ImageID+" has no image loaded")
		}
		if _, ok := groups[r.Dx]; !ok {
			codes = append(codes, r.Dx)
		}
		groups[r.Dx] = append(groups[r.Dx], i)
		tile = max(tile, r.Image.Height, r.Image.Width)
	}
	if len(codes) == 0 {
		return nil, errors.NewModelError("SampleGrid", "empty data", errors.ErrEmptyData)
	}
	sort.Strings(codes)

	cell := tile + 2*gridGap
	grid := image.NewRGBA(image.Rect(0, 0, perClass*cell, len(codes)*cell))
	draw.Draw(grid, grid.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	for row, code := range codes {
		idx := groups[code]
		rng := rand.New(rand.NewSource(seed))
		pick := rng.Perm(len(idx))
		if len(pick) > perClass {
			pick = pick[:perClass]
		}
		for col, p := range pick {
			img := records[idx[p]].Image
			at := image.Pt(col*cell+gridGap, row*cell+gridGap)
			src := img.RGBA()
			draw.Copy(grid, at, src, src.Bounds(), draw.Src, nil)
		}
	}
	return grid, nil
}

// WriteSampleGrid renders SampleGrid as a PNG file.
func WriteSampleGrid(path string, records []dataset.Record, perClass int, seed int64) error {
	grid, err := SampleGrid(records, perClass, seed)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := png.Encode(f, grid); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path)
	}
	b := grid.Bounds()
	log.Component("report").Info("sample grid written",
		log.PathKey, path,
		log.ShapeKey, []int{b.Dy(), b.Dx()},
	)
	return nil
}
