package report

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/training"
)

func rec(id, dx, sex, loc, age string) dataset.Record {
	return dataset.Record{ImageID: id, Dx: dx, Sex: sex, Localization: loc, Age: age, Label: dataset.NoLabel}
}

func metadata() []dataset.Record {
	return []dataset.Record{
		rec("ISIC_1", "nv", "male", "back", "45.0"),
		rec("ISIC_2", "nv", "female", "face", "50"),
		rec("ISIC_3", "mel", "male", "back", ""),
		rec("ISIC_4", "bkl", "", "trunk", "30"),
		rec("ISIC_5", "mel", "female", "back", "55"),
		rec("ISIC_6", "nv", "male", "lower extremity", "abc"),
	}
}

func TestValueCounts(t *testing.T) {
	tests := []struct {
		column string
		want   []Count
	}{
		{ColumnDx, []Count{{"nv", 3}, {"mel", 2}, {"bkl", 1}}},
		{ColumnSex, []Count{{"male", 3}, {"female", 2}, {"unknown", 1}}},
		{ColumnLocalization, []Count{{"back", 3}, {"face", 1}, {"lower extremity", 1}, {"trunk", 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			got, err := ValueCounts(metadata(), tt.column)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	_, err := ValueCounts(metadata(), "image_id")
	var valErr *errors.ValidationError
	if !errors.As(err, &valErr) {
		t.Errorf("unknown column error = %v, want ValidationError", err)
	}
}

func TestFormatCounts(t *testing.T) {
	got := FormatCounts("dx", []Count{{"nv", 3}, {"mel", 12}})
	want := "nv       3\nmel     12\n"
	if got != want {
		t.Errorf("FormatCounts = %q, want %q", got, want)
	}
}

func TestAges(t *testing.T) {
	s := Ages(metadata())
	if s.Count != 4 || s.Missing != 2 {
		t.Errorf("count %d missing %d, want 4 and 2", s.Count, s.Missing)
	}
	if math.Abs(s.Mean-45) > 1e-12 {
		t.Errorf("mean = %g, want 45", s.Mean)
	}
	// sample standard deviation of 45, 50, 30, 55
	if math.Abs(s.StdDev-math.Sqrt(350.0/3)) > 1e-9 {
		t.Errorf("stddev = %g", s.StdDev)
	}
}

func TestWriteDistributions(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	paths, err := WriteDistributions(dir, metadata())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 3 {
		t.Fatalf("paths = %v", paths)
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			t.Errorf("%s not written: %v", p, err)
		}
	}

	if _, err := BarChart("empty", "Count", nil); err == nil {
		t.Error("BarChart(nil) should fail")
	}
}

func TestWriteAccuracy(t *testing.T) {
	c, err := training.Compare([]*training.Result{
		{Name: "cnn", TestAccuracy: 0.71},
		{Name: "ann", TestAccuracy: 0.52},
	})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "accuracy.png")
	if err := WriteAccuracy(path, c); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
}

func solid(size int, v uint8) *dataset.Image {
	pix := make([]uint8, size*size*3)
	for i := range pix {
		pix[i] = v
	}
	return &dataset.Image{Height: size, Width: size, Channels: 3, Pix: pix}
}

func TestSampleGrid(t *testing.T) {
	const size = 4
	var records []dataset.Record
	for i, dx := range []string{"nv", "mel", "nv", "nv", "mel", "bkl"} {
		r := rec("ISIC_"+string(rune('a'+i)), dx, "", "", "")
		r.Image = solid(size, 100)
		records = append(records, r)
	}

	grid, err := SampleGrid(records, 2, SampleGridSeed)
	if err != nil {
		t.Fatal(err)
	}
	cell := size + 2*gridGap
	if b := grid.Bounds(); b.Dx() != 2*cell || b.Dy() != 3*cell {
		t.Fatalf("bounds = %v, want %dx%d", b, 2*cell, 3*cell)
	}
	// bkl is the first row and has a single sample, so its second cell stays blank.
	if got := grid.RGBAAt(gridGap, gridGap); got != (color.RGBA{100, 100, 100, 255}) {
		t.Errorf("first tile pixel = %v", got)
	}
	if got := grid.RGBAAt(cell+gridGap, gridGap); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("empty cell pixel = %v", got)
	}
	if got := grid.RGBAAt(0, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("border pixel = %v", got)
	}

	records[1].Image = nil
	if _, err := SampleGrid(records, 2, SampleGridSeed); err == nil {
		t.Error("SampleGrid should reject records without images")
	}

	path := filepath.Join(t.TempDir(), "samples.png")
	records[1].Image = solid(size, 10)
	if err := WriteSampleGrid(path, records, 5, 1); err != nil {
		t.Fatal(err)
	}
}
