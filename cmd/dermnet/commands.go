package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/YuminosukeSato/dermnet/dataset"
	"github.com/YuminosukeSato/dermnet/export"
	"github.com/YuminosukeSato/dermnet/pipeline"
	"github.com/spf13/cobra"
)

func prepareCmd(g *globalFlags) *cobra.Command {
	var flags dataFlags
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "load, balance and assemble the dataset without training",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g.configPath, cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			prep, err := p.Prepare(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "records:  %d\n", len(prep.Metadata))
			fmt.Fprintf(out, "classes:  %s\n", strings.Join(prep.Encoder.Classes(), ","))
			fmt.Fprintf(out, "balanced: %v per class\n", dataset.ClassCounts(prep.Balanced, prep.Encoder.NumClasses()))
			fmt.Fprintf(out, "X:        %v\n", prep.Dataset.X.Shape())
			fmt.Fprintf(out, "train:    %d  test: %d\n", prep.Split.XTrain.Count(), prep.Split.XTest.Count())
			return nil
		},
	}
	flags.register(cmd.Flags(), false)
	return cmd
}

func trainCmd(g *globalFlags) *cobra.Command {
	var flags dataFlags
	cmd := &cobra.Command{
		Use:   "train",
		Short: "prepare the dataset, train every architecture and export the best model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g.configPath, cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg)
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, res.Comparison.Table())
			best := res.Comparison.Best()
			fmt.Fprintf(out, "best: %s (accuracy %.4f)\n", best.Name, best.TestAccuracy)
			fmt.Fprint(out, res.Confusion.Format(res.Encoder.Classes()))
			if cfg.ModelOut != "" {
				fmt.Fprintf(out, "model:  %s\n", cfg.ModelOut)
			}
			if cfg.MobileOut != "" {
				fmt.Fprintf(out, "mobile: %s\n", cfg.MobileOut)
			}
			return nil
		},
	}
	flags.register(cmd.Flags(), true)
	return cmd
}

func predictCmd() *cobra.Command {
	var (
		modelPath  string
		mobilePath string
		top        int
	)
	cmd := &cobra.Command{
		Use:   "predict IMAGE...",
		Short: "classify lesion images with an exported model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := loadModel(modelPath, mobilePath)
			if err != nil {
				return err
			}
			pred, err := export.NewPredictor(b)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				res, err := pred.PredictFile(id, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\t%s\t%.4f", res.ImageID, res.Code, res.Probability)
				if top > 1 {
					for _, c := range pred.Top(res, top)[1:] {
						fmt.Fprintf(out, "\t%s=%.4f", c.Code, c.Probability)
					}
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelPath, "model", "my_model.gob", "model bundle written by train")
	cmd.Flags().StringVar(&mobilePath, "mobile", "", "use a quantized mobile artifact instead of --model")
	cmd.Flags().IntVar(&top, "top", 1, "also print the next most probable classes")
	return cmd
}

func loadModel(modelPath, mobilePath string) (*export.Bundle, error) {
	if mobilePath != "" {
		return export.LoadMobile(mobilePath)
	}
	return export.LoadBundle(modelPath)
}

func configCmd(g *globalFlags) *cobra.Command {
	var flags dataFlags
	cmd := &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(g.configPath, cmd.Flags(), &flags)
			if err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}
	flags.register(cmd.Flags(), true)
	return cmd
}
