package dataset

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const header = "lesion_id,image_id,dx,dx_type,age,sex,localization\n"

// writeImage writes a w×h solid image in the format implied by name.
func writeImage(t *testing.T, dir, name string, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	switch filepath.Ext(name) {
	case ".jpg", ".jpeg":
		err = jpeg.Encode(f, img, &jpeg.Options{Quality: 100})
	default:
		err = png.Encode(f, img)
	}
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// metadataCSV builds a metadata file body from "image_id:dx" pairs.
func metadataCSV(pairs ...string) string {
	var b strings.Builder
	b.WriteString(header)
	for i, p := range pairs {
		id, dx, _ := strings.Cut(p, ":")
		b.WriteString("HAM_" + string(rune('A'+i)) + "," + id + "," + dx + ",histo,45.0,male,back\n")
	}
	return b.String()
}

// labelled returns records with the given labels and ids ISIC_<i>.
func labelled(labels ...int) []Record {
	out := make([]Record, len(labels))
	for i, l := range labels {
		out[i] = Record{ImageID: "ISIC_" + string(rune('a'+i)), Label: l}
	}
	return out
}

func gray(v uint8) color.RGBA {
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

func mkdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
}
