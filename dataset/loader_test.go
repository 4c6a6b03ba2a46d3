package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"golang.org/x/image/draw"
)

func TestNewResizer(t *testing.T) {
	for _, k := range []string{"", "nearest", "approxbilinear", "BiLinear", "catmullrom"} {
		if _, err := NewResizer(8, k); err != nil {
			t.Errorf("NewResizer(8, %q) = %v", k, err)
		}
	}
	if _, err := NewResizer(8, "lanczos"); err == nil {
		t.Error("unknown kernel should fail")
	}
	if _, err := NewResizer(0, ""); err == nil {
		t.Error("zero size should fail")
	}
}

func TestResizerResize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			src.SetRGBA(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 0xff})
		}
	}
	r := Resizer{Size: 4, Interpolator: draw.NearestNeighbor}
	img := r.Resize(src)
	if got := img.Shape(); got[0] != 4 || got[1] != 4 || got[2] != 3 {
		t.Fatalf("Shape() = %v", got)
	}
	if img.At(2, 3, 0) != 200 || img.At(2, 3, 1) != 100 || img.At(2, 3, 2) != 50 {
		t.Errorf("pixel = %v %v %v", img.At(2, 3, 0), img.At(2, 3, 1), img.At(2, 3, 2))
	}
	if rgba := img.RGBA(); rgba.RGBAAt(1, 1).R != 200 {
		t.Errorf("RGBA() round trip lost color: %v", rgba.RGBAAt(1, 1))
	}
}

func resolvedRecords(t *testing.T, n int) ([]Record, string) {
	t.Helper()
	dir := t.TempDir()
	records := make([]Record, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("ISIC_%03d", i)
		records[i] = Record{
			ImageID: id,
			Label:   i % 2,
			Path:    writeImage(t, dir, id+".png", 12, 9, gray(uint8(i*10))),
		}
	}
	return records, dir
}

func TestLoadImagesPreservesOrder(t *testing.T) {
	records, _ := resolvedRecords(t, 20)
	resizer, err := NewResizer(8, "nearest")
	if err != nil {
		t.Fatal(err)
	}

	out, err := LoadImages(context.Background(), records, resizer, LoadOptions{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(records) {
		t.Fatalf("len = %d", len(out))
	}
	for i, r := range out {
		if r.ImageID != records[i].ImageID || r.Label != records[i].Label {
			t.Fatalf("row %d is %s, want %s", i, r.ImageID, records[i].ImageID)
		}
		if r.Image == nil || r.Image.At(0, 0, 0) != uint8(i*10) {
			t.Errorf("row %d carries the wrong pixels", i)
		}
	}
	if records[0].Image != nil {
		t.Error("LoadImages mutated its input")
	}
}

func TestLoadImagesSharesDuplicates(t *testing.T) {
	records, _ := resolvedRecords(t, 2)
	balanced := []Record{records[0], records[1], records[0], records[0]}
	resizer, _ := NewResizer(4, "")

	out, err := LoadImages(context.Background(), balanced, resizer, LoadOptions{Workers: 3})
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Image != out[2].Image || out[0].Image != out[3].Image {
		t.Error("duplicate records should share one decoded image")
	}
	if out[0].Image == out[1].Image {
		t.Error("distinct records must not share an image")
	}
}

func TestLoadImagesDecodeError(t *testing.T) {
	records, dir := resolvedRecords(t, 4)
	records[2].Path = writeFile(t, dir, "ISIC_bad.png", "not an image")
	records[3].Path = writeFile(t, dir, "ISIC_bad2.png", "not an image either")
	resizer, _ := NewResizer(4, "")

	_, err := LoadImages(context.Background(), records, resizer, LoadOptions{Workers: 4})
	var de *errors.ImageDecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected ImageDecodeError, got %v", err)
	}
	if de.ImageID != records[2].ImageID {
		t.Errorf("error names %s, want the first failing record %s", de.ImageID, records[2].ImageID)
	}
}

func TestLoadImagesUnresolved(t *testing.T) {
	resizer, _ := NewResizer(4, "")
	_, err := LoadImages(context.Background(), []Record{{ImageID: "ISIC_1"}}, resizer, LoadOptions{})
	var nf *errors.ImageNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ImageNotFoundError, got %v", err)
	}
}

func TestLoadImagesCanceled(t *testing.T) {
	records, _ := resolvedRecords(t, 3)
	resizer, _ := NewResizer(4, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadImages(ctx, records, resizer, LoadOptions{Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
