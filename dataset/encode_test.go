package dataset

import (
	"testing"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/preprocessing"
)

func TestEncodeLabels(t *testing.T) {
	records := []Record{
		{ImageID: "ISIC_1", Dx: "nv", Label: NoLabel},
		{ImageID: "ISIC_2", Dx: "mel", Label: NoLabel},
		{ImageID: "ISIC_3", Dx: "nv", Label: NoLabel},
	}
	enc, err := FitEncoder(records, nil)
	if err != nil {
		t.Fatal(err)
	}
	out, err := EncodeLabels(records, enc)
	if err != nil {
		t.Fatal(err)
	}
	want := []int{1, 0, 1}
	for i, r := range out {
		if r.Label != want[i] {
			t.Errorf("%s: Label = %d, want %d", r.ImageID, r.Label, want[i])
		}
	}
	if records[0].Label != NoLabel {
		t.Error("EncodeLabels mutated its input")
	}
}

func TestEncodeLabelsDeclaredClasses(t *testing.T) {
	records := []Record{{ImageID: "ISIC_1", Dx: "vasc"}}
	enc, err := FitEncoder(records, []string{"akiec", "bcc", "bkl", "df", "mel", "nv", "vasc"})
	if err != nil {
		t.Fatal(err)
	}
	out, err := EncodeLabels(records, enc)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Label != 6 || enc.NumClasses() != 7 {
		t.Errorf("Label = %d, NumClasses = %d", out[0].Label, enc.NumClasses())
	}
}

func TestEncodeLabelsUnknown(t *testing.T) {
	enc := preprocessing.NewLabelEncoder()
	if err := enc.Fit([]string{"mel", "nv"}); err != nil {
		t.Fatal(err)
	}
	records := []Record{{ImageID: "ISIC_1", Dx: "nv"}, {ImageID: "ISIC_9", Dx: "xyz"}}
	_, err := EncodeLabels(records, enc)
	var unknown *errors.UnknownLabelError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownLabelError, got %v", err)
	}
	if unknown.RecordID != "ISIC_9" || unknown.Label != "xyz" {
		t.Errorf("error names %s/%s", unknown.RecordID, unknown.Label)
	}
}

func TestEncodeLabelsNotFitted(t *testing.T) {
	_, err := EncodeLabels([]Record{{ImageID: "a", Dx: "nv"}}, preprocessing.NewLabelEncoder())
	var nf *errors.NotFittedError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFittedError, got %v", err)
	}
}
