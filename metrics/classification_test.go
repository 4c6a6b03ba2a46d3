package metrics

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []int
		yPred   []int
		want    float64
		wantErr bool
	}{
		{name: "Perfect", yTrue: []int{0, 1, 2}, yPred: []int{0, 1, 2}, want: 1},
		{name: "Half", yTrue: []int{0, 1, 2, 3}, yPred: []int{0, 1, 0, 0}, want: 0.5},
		{name: "None", yTrue: []int{1, 1}, yPred: []int{0, 0}, want: 0},
		{name: "Length mismatch", yTrue: []int{0, 1}, yPred: []int{0}, wantErr: true},
		{name: "Empty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Accuracy(tt.yTrue, tt.yPred)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Accuracy() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Accuracy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategoricalMetrics(t *testing.T) {
	yTrue := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 0, 1,
	})
	proba := mat.NewDense(2, 3, []float64{
		0.5, 0.25, 0.25,
		0.5, 0.25, 0.25,
	})

	acc, err := CategoricalAccuracy(yTrue, proba)
	if err != nil {
		t.Fatal(err)
	}
	if acc != 0.5 {
		t.Errorf("CategoricalAccuracy() = %v, want 0.5", acc)
	}

	loss, err := CategoricalCrossEntropy(yTrue, proba)
	if err != nil {
		t.Fatal(err)
	}
	want := -(math.Log(0.5) + math.Log(0.25)) / 2
	if math.Abs(loss-want) > 1e-12 {
		t.Errorf("CategoricalCrossEntropy() = %v, want %v", loss, want)
	}

	if _, err := CategoricalAccuracy(yTrue, mat.NewDense(2, 2, nil)); err == nil {
		t.Error("expected dimension error")
	}
}

func TestArgMaxTies(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		0.2, 0.4, 0.4,
		0.1, 0.1, 0.1,
	})
	got := ArgMax(m)
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("ArgMax() = %v, want [1 0]", got)
	}
}

func TestConfusionMatrix(t *testing.T) {
	cm, err := NewConfusionMatrix([]int{0, 0, 1, 1, 2}, []int{0, 1, 1, 1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := mat.NewDense(3, 3, []float64{
		1, 1, 0,
		0, 2, 0,
		1, 0, 0,
	})
	if !mat.Equal(cm.Counts, want) {
		t.Errorf("Counts = %v", mat.Formatted(cm.Counts))
	}
	if got := cm.Accuracy(); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("Accuracy() = %v, want 0.6", got)
	}
	recall := cm.Recall()
	if recall[0] != 0.5 || recall[1] != 1 || recall[2] != 0 {
		t.Errorf("Recall() = %v", recall)
	}
	precision := cm.Precision()
	if precision[0] != 0.5 || math.Abs(precision[1]-2.0/3.0) > 1e-12 {
		t.Errorf("Precision() = %v", precision)
	}
	if s := cm.Format([]string{"a", "b", "c"}); !strings.Contains(s, "a") || strings.Count(s, "\n") != 4 {
		t.Errorf("Format() = %q", s)
	}

	if _, err := NewConfusionMatrix([]int{3}, []int{0}, 3); err == nil {
		t.Error("label outside k should fail")
	}
}
