package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/YuminosukeSato/dermnet/config"
	"github.com/YuminosukeSato/dermnet/pkg/errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	yaml := "metadata_path: meta.csv\nimage_dir: imgs\nepochs: 5\nseed: 7\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", path, "config", "--epochs", "9", "--arch", "ann,fnn")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg, err := config.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatalf("decode printed config: %v\n%s", err, out)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"flag beats file", cfg.Epochs, 9},
		{"file beats default", cfg.Seed, int64(7)},
		{"file value kept", cfg.MetadataPath, "meta.csv"},
		{"default kept", cfg.BatchSize, config.Default().BatchSize},
		{"slice flag", strings.Join(cfg.Architectures, ","), "ann,fnn"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestUnsetFlagsKeepDefaults(t *testing.T) {
	out, err := run(t, "config")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	want := config.Default()
	if cfg.SamplesPerClass != want.SamplesPerClass || cfg.TestFraction != want.TestFraction ||
		cfg.ModelOut != want.ModelOut || cfg.MetadataPath != want.MetadataPath {
		t.Errorf("config = %+v", cfg)
	}
}

func TestPrepareRequiresPaths(t *testing.T) {
	_, err := run(t, "prepare", "--metadata", "")
	var valErr *errors.ValidationError
	if !errors.As(err, &valErr) || valErr.ParamName != "metadata_path" {
		t.Errorf("prepare without paths = %v, want metadata_path ValidationError", err)
	}
}

func TestBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("epochz: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "--config", path, "config")
	var dsErr *errors.DataSourceError
	if !errors.As(err, &dsErr) {
		t.Errorf("unknown key error = %v, want DataSourceError", err)
	}
}

func TestPredictMissingModel(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "predict", "--model", filepath.Join(dir, "none.gob"), filepath.Join(dir, "ISIC_1.jpg"))
	var dsErr *errors.DataSourceError
	if !errors.As(err, &dsErr) {
		t.Errorf("predict error = %v, want DataSourceError", err)
	}
}

func TestBadLogLevel(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--log-level", "loud", "config"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for an unknown log level")
	}
}

func TestPrepareMissingMetadata(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "prepare", "--metadata", filepath.Join(dir, "none.csv"), "--images", dir)
	var dsErr *errors.DataSourceError
	if !errors.As(err, &dsErr) {
		t.Errorf("prepare error = %v, want DataSourceError", err)
	}
}
