package dataset

import (
	"context"
	"sync"
	"time"

	"github.com/YuminosukeSato/dermnet/core/parallel"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

// LoadOptions controls LoadImages.
type LoadOptions struct {
	// Workers bounds the number of concurrent decoders. Zero means NumCPU.
	Workers int
	// Progress renders a progress bar on stderr.
	Progress bool
}

type decoded struct {
	once sync.Once
	id   string
	path string
	img  *Image
	err  error
}

// LoadImages decodes and resizes the image of every record.
//
// Records must have Path set (see ResolvePaths). Each distinct path is decoded
// once and the resulting pixels are shared by every record that references it.
// The output preserves record order regardless of Workers, and on failure the
// error of the first failing record in that order is returned.
func LoadImages(ctx context.Context, records []Record, resizer Resizer, opts LoadOptions) ([]Record, error) {
	logger := log.Component("dataset").With(log.StageKey, log.StageImages)
	start := time.Now()

	cache := make(map[string]*decoded, len(records))
	for _, r := range records {
		if r.Path == "" {
			return nil, errors.NewImageNotFoundError(r.ImageID, "", 1)
		}
		if _, ok := cache[r.Path]; !ok {
			cache[r.Path] = &decoded{id: r.ImageID, path: r.Path}
		}
	}

	var bar *progressbar.ProgressBar
	if opts.Progress {
		bar = progressbar.Default(int64(len(records)), "loading images")
		defer bar.Close()
	}

	out := make([]Record, len(records))
	err := parallel.ForEach(ctx, len(records), opts.Workers, func(ctx context.Context, i int) error {
		r := records[i]
		entry := cache[r.Path]
		entry.once.Do(func() {
			entry.img, entry.err = resizer.Load(entry.id, entry.path)
		})
		if entry.err != nil {
			return entry.err
		}
		r.Image = entry.img
		out[i] = r
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(err, "image loading interrupted")
		}
		return nil, err
	}

	bytes := uint64(len(cache) * resizer.Size * resizer.Size * Channels)
	logger.Info("images loaded",
		log.SamplesKey, len(out),
		log.CountKey, len(cache),
		log.WorkersKey, opts.Workers,
		log.DataSizeKey, bytes,
		log.DataSizeHumanKey, humanize.Bytes(bytes),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}
