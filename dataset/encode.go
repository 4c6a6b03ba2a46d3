package dataset

import (
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/YuminosukeSato/dermnet/preprocessing"
)

// EncodeLabels returns a copy of records with Label set from enc.
// A code outside the encoder's classes fails with an UnknownLabelError naming the record.
func EncodeLabels(records []Record, enc *preprocessing.LabelEncoder) ([]Record, error) {
	if err := enc.RequireFitted("LabelEncoder", "EncodeLabels"); err != nil {
		return nil, err
	}
	out := make([]Record, len(records))
	for i, r := range records {
		label, err := enc.Index(r.Dx)
		if err != nil {
			return nil, errors.NewUnknownLabelErrorForRecord(r.ImageID, r.Dx, enc.Classes())
		}
		r.Label = label
		out[i] = r
	}

	log.Component("dataset").Info("labels encoded",
		log.StageKey, log.StageEncode,
		log.SamplesKey, len(out),
		log.ClassesKey, enc.NumClasses(),
	)
	return out, nil
}

// FitEncoder fits a LabelEncoder on classes when given, otherwise on the codes
// observed in records.
func FitEncoder(records []Record, classes []string) (*preprocessing.LabelEncoder, error) {
	enc := preprocessing.NewLabelEncoder()
	codes := classes
	if len(codes) == 0 {
		codes = Codes(records)
	}
	if err := enc.Fit(codes); err != nil {
		return nil, err
	}
	return enc, nil
}
