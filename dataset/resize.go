package dataset

import (
	"image"
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG
	"os"
	"strings"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	_ "golang.org/x/image/bmp" // register BMP
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF
	_ "golang.org/x/image/webp" // register WebP
)

// Channels is the number of color channels produced by the resizer.
const Channels = 3

// Resizer decodes an image file and scales it to Size × Size RGB.
type Resizer struct {
	Size         int
	Interpolator draw.Interpolator
}

// NewResizer returns a Resizer using the named kernel: "nearest",
// "approxbilinear" (the default for an empty name), "bilinear" or "catmullrom".
func NewResizer(size int, kernel string) (Resizer, error) {
	if size <= 0 {
		return Resizer{}, errors.NewValidationError("image_size", "must be positive", size)
	}
	var interp draw.Interpolator
	switch strings.ToLower(kernel) {
	case "", "approxbilinear":
		interp = draw.ApproxBiLinear
	case "nearest":
		interp = draw.NearestNeighbor
	case "bilinear":
		interp = draw.BiLinear
	case "catmullrom":
		interp = draw.CatmullRom
	default:
		return Resizer{}, errors.NewValidationError("interpolation", "unknown kernel", kernel)
	}
	return Resizer{Size: size, Interpolator: interp}, nil
}

// Load decodes the file at path and resizes it. Failures are reported as
// ImageDecodeError naming id.
func (r Resizer) Load(id, path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewImageDecodeError(id, path, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.NewImageDecodeError(id, path, err)
	}
	if src.Bounds().Empty() {
		return nil, errors.NewImageDecodeError(id, path, errors.New("image has no pixels"))
	}
	return r.Resize(src), nil
}

// Resize scales src to Size × Size and drops the alpha channel.
func (r Resizer) Resize(src image.Image) *Image {
	interp := r.Interpolator
	if interp == nil {
		interp = draw.ApproxBiLinear
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Size, r.Size))
	interp.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := &Image{Height: r.Size, Width: r.Size, Channels: Channels, Pix: make([]uint8, r.Size*r.Size*Channels)}
	for i, j := 0, 0; i < len(dst.Pix); i, j = i+4, j+Channels {
		out.Pix[j] = dst.Pix[i]
		out.Pix[j+1] = dst.Pix[i+1]
		out.Pix[j+2] = dst.Pix[i+2]
	}
	return out
}
