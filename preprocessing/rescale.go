package preprocessing

import "fmt"

// MaxPixelValue is the largest 8-bit channel intensity.
const MaxPixelValue = 255.0

// PixelRescaler maps 8-bit channel intensities onto [0, 1] by dividing by Max.
// Unlike a fitted scaler it is stateless: the range is fixed by the image format.
type PixelRescaler struct {
	Max float64
}

// NewPixelRescaler returns a rescaler for 8-bit images.
func NewPixelRescaler() PixelRescaler {
	return PixelRescaler{Max: MaxPixelValue}
}

// RescaleInto writes pix/Max into dst, which must have len(pix) elements.
func (p PixelRescaler) RescaleInto(dst []float64, pix []uint8) {
	inv := 1 / p.max()
	for i, v := range pix {
		dst[i] = float64(v) * inv
	}
}

func (p PixelRescaler) max() float64 {
	if p.Max <= 0 {
		return MaxPixelValue
	}
	return p.Max
}

// String returns a short description of the rescaler.
func (p PixelRescaler) String() string {
	return fmt.Sprintf("PixelRescaler(max=%g)", p.max())
}
