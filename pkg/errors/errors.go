// Package errors provides the error taxonomy and warning system used across dermnet.
//
// Every constructor attaches a stack trace through cockroachdb/errors, so errors
// can be printed with %+v for diagnostics and matched with As/Is after wrapping.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("dermnet-Warning: %v\n", w)
	}
	// zerolog sink, installed lazily by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the process-wide warning handler.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning. The zerolog sink wins when one is installed.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// DuplicateImageWarning is raised when several files in the image directory
// share one sample id. The file that sorts first is kept.
type DuplicateImageWarning struct {
	ImageID string
	Kept    string
	Ignored []string
}

func (w *DuplicateImageWarning) Error() string {
	return fmt.Sprintf("image id %q has %d candidate files; using %s, ignoring %v",
		w.ImageID, len(w.Ignored)+1, w.Kept, w.Ignored)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *DuplicateImageWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("image_id", w.ImageID).
		Str("kept", w.Kept).
		Strs("ignored", w.Ignored).
		Str("type", "DuplicateImageWarning")
}

// NewDuplicateImageWarning creates a DuplicateImageWarning.
func NewDuplicateImageWarning(imageID, kept string, ignored []string) *DuplicateImageWarning {
	return &DuplicateImageWarning{ImageID: imageID, Kept: kept, Ignored: ignored}
}

// ConvergenceWarning is raised when training finishes with a loss that did not improve.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d epochs: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d epochs. Consider increasing epochs or the learning rate.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// ===========================================================================
//
//	Data pipeline errors
//
// ===========================================================================

// DataSourceError reports unreadable or malformed input: a missing metadata file,
// a bad CSV row, a missing image directory or a corrupt artifact.
type DataSourceError struct {
	Source string // file or directory path
	Row    int    // 1-based data row, 0 when not row specific
	Reason string
	Err    error
}

func (e *DataSourceError) Error() string {
	msg := fmt.Sprintf("dermnet: data source %s", e.Source)
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DataSourceError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("source", e.Source).
		Int("row", e.Row).
		Str("reason", e.Reason).
		Str("type", "DataSourceError")
}

// NewDataSourceError creates a DataSourceError with a stack trace.
func NewDataSourceError(source string, row int, reason string, err error) error {
	return errors.WithStack(&DataSourceError{Source: source, Row: row, Reason: reason, Err: err})
}

// UnknownLabelError reports a diagnosis code or class index outside the fitted encoding.
type UnknownLabelError struct {
	Label    string   // offending code, or the index rendered as text
	RecordID string   // sample id when known
	Known    []string // fitted classes
}

func (e *UnknownLabelError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("dermnet: record %s: unknown label %q (known: %v)", e.RecordID, e.Label, e.Known)
	}
	return fmt.Sprintf("dermnet: unknown label %q (known: %v)", e.Label, e.Known)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnknownLabelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("label", e.Label).
		Str("record_id", e.RecordID).
		Strs("known", e.Known).
		Str("type", "UnknownLabelError")
}

// NewUnknownLabelError creates an UnknownLabelError with a stack trace.
func NewUnknownLabelError(label string, known []string) error {
	return errors.WithStack(&UnknownLabelError{Label: label, Known: known})
}

// NewUnknownLabelErrorForRecord creates an UnknownLabelError naming the record.
func NewUnknownLabelErrorForRecord(recordID, label string, known []string) error {
	return errors.WithStack(&UnknownLabelError{Label: label, RecordID: recordID, Known: known})
}

// EmptyClassError reports a class with no source records, which cannot be resampled.
type EmptyClassError struct {
	Label int
	Class string
}

func (e *EmptyClassError) Error() string {
	if e.Class != "" {
		return fmt.Sprintf("dermnet: class %d (%s) has no source records to sample from", e.Label, e.Class)
	}
	return fmt.Sprintf("dermnet: class %d has no source records to sample from", e.Label)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *EmptyClassError) MarshalZerologObject(event *zerolog.Event) {
	event.Int("label", e.Label).
		Str("class", e.Class).
		Str("type", "EmptyClassError")
}

// NewEmptyClassError creates an EmptyClassError with a stack trace.
func NewEmptyClassError(label int, class string) error {
	return errors.WithStack(&EmptyClassError{Label: label, Class: class})
}

// ImageNotFoundError reports a sample id with no matching file in the image directory.
type ImageNotFoundError struct {
	ImageID string
	Dir     string
	Missing int // total number of unresolved ids in the same batch
}

func (e *ImageNotFoundError) Error() string {
	if e.Missing > 1 {
		return fmt.Sprintf("dermnet: no image file for id %q in %s (%d ids unresolved)", e.ImageID, e.Dir, e.Missing)
	}
	return fmt.Sprintf("dermnet: no image file for id %q in %s", e.ImageID, e.Dir)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ImageNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("image_id", e.ImageID).
		Str("dir", e.Dir).
		Int("missing", e.Missing).
		Str("type", "ImageNotFoundError")
}

// NewImageNotFoundError creates an ImageNotFoundError with a stack trace.
func NewImageNotFoundError(imageID, dir string, missing int) error {
	return errors.WithStack(&ImageNotFoundError{ImageID: imageID, Dir: dir, Missing: missing})
}

// ImageDecodeError reports an image file that could not be decoded.
type ImageDecodeError struct {
	ImageID string
	Path    string
	Err     error
}

func (e *ImageDecodeError) Error() string {
	return fmt.Sprintf("dermnet: decode image %q (%s): %v", e.ImageID, e.Path, e.Err)
}

func (e *ImageDecodeError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ImageDecodeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("image_id", e.ImageID).
		Str("path", e.Path).
		Str("type", "ImageDecodeError")
}

// NewImageDecodeError creates an ImageDecodeError with a stack trace.
func NewImageDecodeError(imageID, path string, err error) error {
	return errors.WithStack(&ImageDecodeError{ImageID: imageID, Path: path, Err: err})
}

// ShapeMismatchError reports an image array whose shape differs from the
// (size, size, channels) the assembler expects.
type ShapeMismatchError struct {
	RecordID string
	Expected []int
	Got      []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("dermnet: record %s: image shape %v does not match expected %v", e.RecordID, e.Got, e.Expected)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("record_id", e.RecordID).
		Ints("expected", e.Expected).
		Ints("got", e.Got).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError creates a ShapeMismatchError with a stack trace.
func NewShapeMismatchError(recordID string, expected, got []int) error {
	return errors.WithStack(&ShapeMismatchError{RecordID: recordID, Expected: expected, Got: got})
}

// ===========================================================================
//
//	Model errors
//
// ===========================================================================

// NotFittedError is returned when a model or encoder is used before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("dermnet: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError is returned when matrix dimensions disagree.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("dermnet: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValidationError is returned when a configuration parameter is invalid.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dermnet: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError is returned when an argument has an inappropriate value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("dermnet: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError is a general model failure that wraps a cause.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dermnet: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("dermnet: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// NumericalInstabilityError reports NaN or Inf values produced during training.
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("dermnet: numerical instability detected in %s at iteration %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// NewNumericalInstabilityError creates a NumericalInstabilityError with a stack trace.
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned when an operation receives no samples.
	ErrEmptyData = New("empty data")

	// ErrCanceled is returned when a run is interrupted through its context.
	ErrCanceled = New("run canceled")
)
