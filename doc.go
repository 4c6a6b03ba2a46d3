// Package dermnet trains skin lesion classifiers on the HAM10000
// dermatoscopic image set.
//
// The work is split into stages that each return a new value and never
// mutate their input:
//
//   - dataset.LoadMetadata reads HAM10000_metadata.csv into records
//   - preprocessing.LabelEncoder maps diagnosis codes (akiec, bcc, bkl, df,
//     mel, nv, vasc) onto labels 0..k-1, and dataset.EncodeLabels applies it
//   - dataset.Balance resamples every class to the same size with replacement
//   - dataset.IndexImages, dataset.ResolvePaths and dataset.LoadImages find,
//     decode and resize the images, in parallel but in record order
//   - dataset.Assemble stacks the pixels into a [0, 1] tensor next to one-hot
//     labels, and Dataset.Split holds out a test fraction
//
// The training package fits the cnn, ann and fnn networks from package nn,
// ranks them by holdout accuracy and the export package writes the best one
// as a gob bundle and as a quantized mobile artifact. Package pipeline runs
// all of it from a config.Config, and cmd/dermnet is the command line
// front end:
//
//	dermnet train --metadata HAM10000_metadata.csv --images all_images \
//	    --arch cnn,ann,fnn --epochs 60 --report-dir reports
//	dermnet predict --model my_model.gob ISIC_0024306.jpg
//
// Every failure is one of the typed errors in pkg/errors and names the
// offending record, so a run stops at the first stage that can detect a
// problem.
package dermnet
