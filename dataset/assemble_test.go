package dataset

import (
	"context"
	"math"
	"testing"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func solidImage(size int, v uint8) *Image {
	pix := make([]uint8, size*size*Channels)
	for i := range pix {
		pix[i] = v
	}
	return &Image{Height: size, Width: size, Channels: Channels, Pix: pix}
}

func TestAssemble(t *testing.T) {
	records := []Record{
		{ImageID: "a", Label: 1, Image: solidImage(2, 255)},
		{ImageID: "b", Label: 0, Image: solidImage(2, 0)},
		{ImageID: "c", Label: 2, Image: solidImage(2, 51)},
	}
	ds, err := Assemble(records, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.X.Shape(); got[0] != 3 || got[1] != 2 || got[2] != 2 || got[3] != 3 {
		t.Errorf("Shape() = %v", got)
	}
	if r, c := ds.Y.Dims(); r != 3 || c != 3 {
		t.Errorf("Y dims = %d×%d", r, c)
	}
	if mat.Max(ds.X.Data) > 1 || mat.Min(ds.X.Data) < 0 {
		t.Error("pixels outside [0, 1]")
	}
	if ds.X.Data.At(0, 0) != 1 || ds.X.Data.At(1, 5) != 0 || math.Abs(ds.X.Data.At(2, 11)-0.2) > 1e-12 {
		t.Error("rows are not in record order")
	}
	for i, r := range records {
		if ds.Y.At(i, r.Label) != 1 || ds.IDs[i] != r.ImageID || ds.Labels[i] != r.Label {
			t.Errorf("row %d misaligned", i)
		}
	}
}

func TestAssembleShapeMismatch(t *testing.T) {
	records := []Record{
		{ImageID: "ok", Label: 0, Image: solidImage(2, 1)},
		{ImageID: "ISIC_2", Label: 0, Image: solidImage(3, 1)},
	}
	ds, err := Assemble(records, 2, 1)
	if ds != nil {
		t.Error("no dataset should be produced")
	}
	var sm *errors.ShapeMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("expected ShapeMismatchError, got %v", err)
	}
	if sm.RecordID != "ISIC_2" || sm.Got[0] != 3 || sm.Expected[0] != 2 {
		t.Errorf("error = %+v", sm)
	}

	_, err = Assemble([]Record{{ImageID: "nil"}}, 2, 1)
	if !errors.As(err, &sm) || sm.RecordID != "nil" {
		t.Errorf("record without image: %v", err)
	}
}

func TestAssembleLabelOutOfRange(t *testing.T) {
	_, err := Assemble([]Record{{ImageID: "x", Label: 4, Image: solidImage(2, 0)}}, 2, 3)
	var unknown *errors.UnknownLabelError
	if !errors.As(err, &unknown) || unknown.RecordID != "x" {
		t.Fatalf("expected UnknownLabelError naming x, got %v", err)
	}
}

func TestTrainTestSplit(t *testing.T) {
	n := 10
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{ImageID: string(rune('a' + i)), Label: i % 2, Image: solidImage(1, uint8(i))}
	}
	ds, err := Assemble(records, 1, 2)
	if err != nil {
		t.Fatal(err)
	}

	s, err := ds.Split(0.25, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.TestIndex) != 3 || len(s.TrainIndex) != 7 {
		t.Errorf("test=%d train=%d, want 3 and 7", len(s.TestIndex), len(s.TrainIndex))
	}
	seen := map[int]bool{}
	for _, i := range append(append([]int(nil), s.TrainIndex...), s.TestIndex...) {
		if seen[i] {
			t.Fatalf("row %d in both partitions", i)
		}
		seen[i] = true
	}
	if len(seen) != n {
		t.Errorf("partitions cover %d rows, want %d", len(seen), n)
	}
	for k, src := range s.TestIndex {
		if s.XTest.Data.At(k, 0) != ds.X.Data.At(src, 0) || s.YTest.At(k, ds.Labels[src]) != 1 {
			t.Errorf("test row %d lost pairing with source row %d", k, src)
		}
	}
	if s.NumClasses() != 2 {
		t.Errorf("NumClasses() = %d", s.NumClasses())
	}

	again, _ := ds.Split(0.25, 42)
	for i := range s.TestIndex {
		if again.TestIndex[i] != s.TestIndex[i] {
			t.Fatal("same seed produced a different split")
		}
	}
}

func TestTrainTestSplitInvalid(t *testing.T) {
	ds, err := Assemble([]Record{{ImageID: "a", Image: solidImage(1, 0)}, {ImageID: "b", Image: solidImage(1, 0)}}, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []float64{0, 1, -0.5, 0.99} {
		if _, err := ds.Split(f, 1); err == nil {
			t.Errorf("fraction %v should fail", f)
		}
	}
	if _, err := TrainTestSplit(ds.X, mat.NewDense(3, 1, nil), 0.5, 1); err == nil {
		t.Error("row mismatch should fail")
	}
}

// The nv, mel, nv scenario: two classes resampled to two records each.
func TestPipelineScenario(t *testing.T) {
	dir := t.TempDir()
	meta := writeFile(t, dir, "meta.csv", metadataCSV("ISIC_1:nv", "ISIC_2:mel", "ISIC_3:nv"))
	imgDir := dir + "/images"
	mkdir(t, imgDir)
	writeImage(t, imgDir, "ISIC_1.jpg", 40, 30, gray(200))
	writeImage(t, imgDir, "ISIC_2.png", 40, 30, gray(100))
	writeImage(t, imgDir, "ISIC_3.png", 64, 64, gray(50))

	records, err := LoadMetadata(meta)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := FitEncoder(records, nil)
	if err != nil {
		t.Fatal(err)
	}
	records, err = EncodeLabels(records, enc)
	if err != nil {
		t.Fatal(err)
	}
	balanced, err := Balance(records, enc.NumClasses(), 2, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(balanced) != 4 {
		t.Fatalf("balanced size = %d, want 4", len(balanced))
	}
	ix, err := IndexImages(imgDir)
	if err != nil {
		t.Fatal(err)
	}
	balanced, err = ResolvePaths(balanced, ix)
	if err != nil {
		t.Fatal(err)
	}
	balanced, err = LoadImages(context.Background(), balanced, Resizer{Size: 8}, LoadOptions{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	ds, err := Assemble(balanced, 8, enc.NumClasses())
	if err != nil {
		t.Fatal(err)
	}
	if got := ds.X.Shape(); got[0] != 4 || got[1] != 8 || got[3] != 3 {
		t.Errorf("X shape = %v", got)
	}
	if _, c := ds.Y.Dims(); c != 2 {
		t.Errorf("Y width = %d, want 2", c)
	}
	// mel rows first
	if ds.Labels[0] != 0 || ds.Labels[1] != 0 || ds.Labels[2] != 1 || ds.Labels[3] != 1 {
		t.Errorf("Labels = %v", ds.Labels)
	}
	if ds.IDs[0] != "ISIC_2" {
		t.Errorf("mel rows must come from ISIC_2, got %s", ds.IDs[0])
	}
	s, err := ds.Split(0.25, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.TestIndex) != 1 || len(s.TrainIndex) != 3 {
		t.Errorf("split %d/%d, want 3/1", len(s.TrainIndex), len(s.TestIndex))
	}
}
