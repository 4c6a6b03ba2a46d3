// Package dataset prepares HAM10000 lesion records for training.
//
// The stages run in a fixed order, each taking records by value and returning a
// new slice:
//
//	LoadMetadata -> EncodeLabels -> Balance -> ResolvePaths -> LoadImages -> Assemble -> TrainTestSplit
//
// Every stage either succeeds completely or returns a typed error from
// pkg/errors naming the offending record; no stage produces partial output.
package dataset

import (
	"image"
	"image/color"
)

// NoLabel marks a record whose diagnosis code has not been encoded yet.
const NoLabel = -1

// Record is one lesion image described by the metadata table.
//
// Label, Path and Image are derived by later stages and are not read from CSV.
type Record struct {
	LesionID     string `csv:"lesion_id"`
	ImageID      string `csv:"image_id"`
	Dx           string `csv:"dx"`
	DxType       string `csv:"dx_type"`
	Age          string `csv:"age"`
	Sex          string `csv:"sex"`
	Localization string `csv:"localization"`

	Label int    `csv:"-"`
	Path  string `csv:"-"`
	Image *Image `csv:"-"`
}

// Image is a decoded, resized RGB image stored row-major as height × width × channels.
// Images are shared between duplicate records and must be treated as read-only.
type Image struct {
	Height   int
	Width    int
	Channels int
	Pix      []uint8
}

// Shape returns [height, width, channels].
func (im *Image) Shape() []int {
	if im == nil {
		return nil
	}
	return []int{im.Height, im.Width, im.Channels}
}

// At returns the intensity of channel c at row y, column x.
func (im *Image) At(y, x, c int) uint8 {
	return im.Pix[(y*im.Width+x)*im.Channels+c]
}

// RGBA converts the image back to an image.RGBA for rendering.
func (im *Image) RGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, im.Width, im.Height))
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			var px color.RGBA
			px.A = 0xff
			switch im.Channels {
			case 1:
				v := im.At(y, x, 0)
				px.R, px.G, px.B = v, v, v
			default:
				px.R, px.G, px.B = im.At(y, x, 0), im.At(y, x, 1), im.At(y, x, 2)
			}
			out.SetRGBA(x, y, px)
		}
	}
	return out
}

// Labels returns the Label field of every record.
func Labels(records []Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.Label
	}
	return out
}

// ImageIDs returns the ImageID field of every record.
func ImageIDs(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ImageID
	}
	return out
}

// Codes returns the Dx field of every record.
func Codes(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Dx
	}
	return out
}

// ClassCounts counts records per label in 0..numClasses-1. Labels outside the
// range are ignored.
func ClassCounts(records []Record, numClasses int) []int {
	counts := make([]int, numClasses)
	for _, r := range records {
		if r.Label >= 0 && r.Label < numClasses {
			counts[r.Label]++
		}
	}
	return counts
}
