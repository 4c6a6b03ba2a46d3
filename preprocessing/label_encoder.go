// Package preprocessing turns diagnosis codes and raw pixels into the numeric
// form the networks consume.
package preprocessing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/dermnet/core/model"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
)

// LabelEncoder maps diagnosis codes to contiguous integer labels.
//
// Classes are the sorted distinct codes seen by Fit; the label of a code is its
// position in that list. The mapping is bijective and does not change unless Fit
// is called again with a different set of codes.
//
// Example:
//
//	enc := preprocessing.NewLabelEncoder()
//	_ = enc.Fit([]string{"nv", "mel", "nv"})
//	labels, _ := enc.Transform([]string{"nv"}) // [1]
type LabelEncoder struct {
	model.StateManager

	// ClassList holds the sorted distinct codes.
	ClassList []string

	index map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// NewLabelEncoderFromClasses rebuilds a fitted encoder from a persisted class
// table, for example the one stored in a model bundle.
func NewLabelEncoderFromClasses(classes []string) (*LabelEncoder, error) {
	enc := NewLabelEncoder()
	if err := enc.Fit(classes); err != nil {
		return nil, err
	}
	if len(enc.ClassList) != len(classes) {
		return nil, errors.NewValidationError("classes", "class table contains duplicates", classes)
	}
	return enc, nil
}

// Fit learns the sorted distinct set of codes.
func (e *LabelEncoder) Fit(codes []string) error {
	if len(codes) == 0 {
		return errors.NewValueError("LabelEncoder.Fit", "no labels to fit")
	}

	seen := make(map[string]struct{}, len(codes))
	classes := make([]string, 0, 8)
	for _, c := range codes {
		if c == "" {
			return errors.NewValueError("LabelEncoder.Fit", "empty label")
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		classes = append(classes, c)
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	e.ClassList = classes
	e.index = index
	e.SetDimensions(len(classes), len(codes))
	e.SetFitted()
	return nil
}

// Transform maps each code to its label.
func (e *LabelEncoder) Transform(codes []string) ([]int, error) {
	if err := e.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]int, len(codes))
	for i, c := range codes {
		idx, err := e.Index(c)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// InverseTransform maps labels back to codes.
func (e *LabelEncoder) InverseTransform(labels []int) ([]string, error) {
	if err := e.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		code, err := e.Code(l)
		if err != nil {
			return nil, err
		}
		out[i] = code
	}
	return out, nil
}

// Index returns the label of a single code.
func (e *LabelEncoder) Index(code string) (int, error) {
	if err := e.RequireFitted("LabelEncoder", "Index"); err != nil {
		return 0, err
	}
	if e.index == nil {
		e.rebuildIndex()
	}
	idx, ok := e.index[code]
	if !ok {
		return 0, errors.NewUnknownLabelError(code, e.ClassList)
	}
	return idx, nil
}

// Code returns the code of a single label.
func (e *LabelEncoder) Code(label int) (string, error) {
	if err := e.RequireFitted("LabelEncoder", "Code"); err != nil {
		return "", err
	}
	if label < 0 || label >= len(e.ClassList) {
		return "", errors.NewUnknownLabelError(fmt.Sprint(label), e.ClassList)
	}
	return e.ClassList[label], nil
}

// Classes returns a copy of the fitted class table.
func (e *LabelEncoder) Classes() []string {
	out := make([]string, len(e.ClassList))
	copy(out, e.ClassList)
	return out
}

// NumClasses returns the number of fitted classes.
func (e *LabelEncoder) NumClasses() int {
	return len(e.ClassList)
}

// String returns a short description of the encoder.
func (e *LabelEncoder) String() string {
	if !e.IsFitted() {
		return "LabelEncoder()"
	}
	return fmt.Sprintf("LabelEncoder(classes=[%s])", strings.Join(e.ClassList, ","))
}

// rebuildIndex restores the lookup map after gob decoding.
func (e *LabelEncoder) rebuildIndex() {
	e.index = make(map[string]int, len(e.ClassList))
	for i, c := range e.ClassList {
		e.index[c] = i
	}
}
