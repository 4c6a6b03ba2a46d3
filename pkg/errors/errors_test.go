package errors

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPipelineErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "data source with row",
			err:     NewDataSourceError("meta.csv", 3, "missing image_id", nil),
			wantMsg: "dermnet: data source meta.csv row 3: missing image_id",
		},
		{
			name:    "data source with cause",
			err:     NewDataSourceError("meta.csv", 0, "cannot open", fmt.Errorf("no such file")),
			wantMsg: "dermnet: data source meta.csv: cannot open: no such file",
		},
		{
			name:    "unknown label",
			err:     NewUnknownLabelError("xyz", []string{"mel", "nv"}),
			wantMsg: `dermnet: unknown label "xyz" (known: [mel nv])`,
		},
		{
			name:    "unknown label for record",
			err:     NewUnknownLabelErrorForRecord("ISIC_1", "xyz", []string{"nv"}),
			wantMsg: `dermnet: record ISIC_1: unknown label "xyz" (known: [nv])`,
		},
		{
			name:    "empty class",
			err:     NewEmptyClassError(3, "df"),
			wantMsg: "dermnet: class 3 (df) has no source records to sample from",
		},
		{
			name:    "image not found",
			err:     NewImageNotFoundError("ISIC_9", "/data/img", 1),
			wantMsg: `dermnet: no image file for id "ISIC_9" in /data/img`,
		},
		{
			name:    "image not found several",
			err:     NewImageNotFoundError("ISIC_9", "/data/img", 4),
			wantMsg: `dermnet: no image file for id "ISIC_9" in /data/img (4 ids unresolved)`,
		},
		{
			name:    "shape mismatch",
			err:     NewShapeMismatchError("ISIC_2", []int{32, 32, 3}, []int{16, 32, 3}),
			wantMsg: "dermnet: record ISIC_2: image shape [16 32 3] does not match expected [32 32 3]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", tt.err.Error(), tt.wantMsg)
			}
			formatted := fmt.Sprintf("%+v", tt.err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}
		})
	}
}

func TestPipelineErrorsSurviveWrapping(t *testing.T) {
	err := Wrap(NewImageDecodeError("ISIC_5", "/img/ISIC_5.jpg", fmt.Errorf("unexpected EOF")), "load images")

	var decodeErr *ImageDecodeError
	if !As(err, &decodeErr) {
		t.Fatal("Error should be castable to *ImageDecodeError")
	}
	if decodeErr.ImageID != "ISIC_5" {
		t.Errorf("ImageID = %q, want ISIC_5", decodeErr.ImageID)
	}
	if !strings.Contains(err.Error(), "unexpected EOF") {
		t.Errorf("cause missing from %q", err.Error())
	}

	var notFound *ImageNotFoundError
	if As(err, &notFound) {
		t.Error("decode error must not match *ImageNotFoundError")
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Dense.Forward", 10, 12, 1)

	want := "dermnet: Dense.Forward: dimension mismatch on axis 1 (features). Expected 10, got 12"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LabelEncoder", "Transform")

	want := "dermnet: LabelEncoder: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger.Error().EmbedObject(&ShapeMismatchError{
		RecordID: "ISIC_7",
		Expected: []int{32, 32, 3},
		Got:      []int{32, 32, 4},
	}).Msg("assemble failed")

	out := buf.String()
	for _, want := range []string{`"record_id":"ISIC_7"`, `"type":"ShapeMismatchError"`, `"expected":[32,32,3]`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output %s missing %s", out, want)
		}
	}
}

func TestWarnUsesZerologSink(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewDuplicateImageWarning("ISIC_1", "ISIC_1.jpg", []string{"ISIC_1.png"}))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	var dup *DuplicateImageWarning
	if !As(got[0], &dup) || dup.Kept != "ISIC_1.jpg" {
		t.Errorf("unexpected warning %v", got[0])
	}
}

func TestCheckScalar(t *testing.T) {
	if err := CheckScalar("loss", 0.5, 1); err != nil {
		t.Errorf("unexpected error %v", err)
	}
	err := CheckScalar("loss", math.NaN(), 7)
	var instab *NumericalInstabilityError
	if !As(err, &instab) {
		t.Fatalf("expected NumericalInstabilityError, got %v", err)
	}
	if instab.Iteration != 7 {
		t.Errorf("Iteration = %d, want 7", instab.Iteration)
	}
}

func TestClipByGlobalNorm(t *testing.T) {
	grads := [][]float64{{3, 0}, {0, 4}}
	norm := ClipByGlobalNorm(grads, 1)
	if math.Abs(norm-5) > 1e-12 {
		t.Errorf("norm = %v, want 5", norm)
	}
	if math.Abs(grads[0][0]-0.6) > 1e-12 || math.Abs(grads[1][1]-0.8) > 1e-12 {
		t.Errorf("unexpected clipped grads %v", grads)
	}

	untouched := [][]float64{{0.1, 0.1}}
	ClipByGlobalNorm(untouched, 0)
	if untouched[0][0] != 0.1 {
		t.Error("maxNorm <= 0 must disable clipping")
	}
}

func TestSoftmax(t *testing.T) {
	src := []float64{1000, 1000, 1000}
	dst := make([]float64, 3)
	Softmax(dst, src)
	for _, v := range dst {
		if math.Abs(v-1.0/3) > 1e-12 {
			t.Fatalf("softmax of equal large logits = %v", dst)
		}
	}
}
