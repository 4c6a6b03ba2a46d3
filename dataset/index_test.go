package dataset

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
)

func captureWarnings(t *testing.T) func() []error {
	t.Helper()
	var (
		mu       sync.Mutex
		warnings []error
	)
	errors.SetWarningHandler(func(w error) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, w)
	})
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
	return func() []error {
		mu.Lock()
		defer mu.Unlock()
		return append([]error(nil), warnings...)
	}
}

func TestIndexImagesFirstMatchWins(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "ISIC_1.png", 4, 4, gray(10))
	writeImage(t, dir, "ISIC_1.jpg", 4, 4, gray(20))
	writeImage(t, dir, "ISIC_2.png", 4, 4, gray(30))
	writeFile(t, dir, ".DS_Store", "junk")
	if err := os.Mkdir(filepath.Join(dir, "ISIC_3"), 0o755); err != nil {
		t.Fatal(err)
	}

	warnings := captureWarnings(t)
	ix, err := IndexImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	if ix.Len() != 2 {
		t.Errorf("Len() = %d, want 2", ix.Len())
	}
	p, ok := ix.Lookup("ISIC_1")
	if !ok || filepath.Base(p) != "ISIC_1.jpg" {
		t.Errorf("Lookup(ISIC_1) = %q, want ISIC_1.jpg", p)
	}
	dups := ix.Duplicates()
	if len(dups["ISIC_1"]) != 1 || filepath.Base(dups["ISIC_1"][0]) != "ISIC_1.png" {
		t.Errorf("Duplicates() = %v", dups)
	}

	got := warnings()
	if len(got) != 1 {
		t.Fatalf("got %d warnings, want 1", len(got))
	}
	var dw *errors.DuplicateImageWarning
	if !errors.As(got[0], &dw) || dw.ImageID != "ISIC_1" {
		t.Errorf("unexpected warning %v", got[0])
	}
}

func TestIndexImagesMissingDir(t *testing.T) {
	_, err := IndexImages(filepath.Join(t.TempDir(), "missing"))
	var ds *errors.DataSourceError
	if !errors.As(err, &ds) {
		t.Fatalf("expected DataSourceError, got %v", err)
	}
}

func TestResolvePaths(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "ISIC_1.png", 4, 4, gray(10))
	writeImage(t, dir, "ISIC_2.png", 4, 4, gray(10))
	ix, err := IndexImages(dir)
	if err != nil {
		t.Fatal(err)
	}

	records := []Record{{ImageID: "ISIC_2"}, {ImageID: "ISIC_1"}, {ImageID: "ISIC_2"}}
	out, err := ResolvePaths(records, ix)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range out {
		if filepath.Base(r.Path) != r.ImageID+".png" {
			t.Errorf("row %d: Path = %q", i, r.Path)
		}
	}
	if records[0].Path != "" {
		t.Error("ResolvePaths mutated its input")
	}
}

func TestResolvePathsMissing(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "ISIC_1.png", 4, 4, gray(10))
	ix, err := IndexImages(dir)
	if err != nil {
		t.Fatal(err)
	}

	records := []Record{{ImageID: "ISIC_1"}, {ImageID: "ISIC_7"}, {ImageID: "ISIC_5"}}
	out, err := ResolvePaths(records, ix)
	if out != nil {
		t.Error("no records should be returned on failure")
	}
	var nf *errors.ImageNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ImageNotFoundError, got %v", err)
	}
	if nf.ImageID != "ISIC_7" || nf.Missing != 2 || nf.Dir != dir {
		t.Errorf("error = %+v", nf)
	}
}
