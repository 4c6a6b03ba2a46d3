package dataset

import (
	"fmt"
	"math/rand"

	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
)

// Balance resamples every label in 0..numClasses-1 to exactly target records.
//
// Each label is sampled uniformly with replacement from its own records using a
// source seeded with seed, so a class smaller than target yields duplicates and
// a larger one is down-sampled. Results are concatenated in label order. The
// input slice is not modified.
func Balance(records []Record, numClasses, target int, seed int64) ([]Record, error) {
	if numClasses <= 0 {
		return nil, errors.NewValidationError("numClasses", "must be positive", numClasses)
	}
	if target <= 0 {
		return nil, errors.NewValidationError("target", "must be positive", target)
	}

	groups := make([][]int, numClasses)
	for i, r := range records {
		if r.Label < 0 || r.Label >= numClasses {
			return nil, errors.NewUnknownLabelErrorForRecord(r.ImageID, fmt.Sprint(r.Label), nil)
		}
		groups[r.Label] = append(groups[r.Label], i)
	}

	logger := log.Component("dataset").With(log.StageKey, log.StageBalance)
	out := make([]Record, 0, numClasses*target)
	for label, members := range groups {
		if len(members) == 0 {
			return nil, errors.NewEmptyClassError(label, "")
		}
		// Each class reseeds, so classes of equal size draw the same index
		// sequence. Resampling one class never depends on the others.
		rng := rand.New(rand.NewSource(seed))
		for n := 0; n < target; n++ {
			out = append(out, records[members[rng.Intn(len(members))]])
		}
		logger.Debug("class resampled",
			log.LabelKey, label,
			log.CountKey, len(members),
			log.SamplesKey, target,
		)
	}

	logger.Info("classes balanced",
		log.SamplesKey, len(out),
		log.ClassesKey, numClasses,
		log.RandomSeedKey, seed,
	)
	return out, nil
}
