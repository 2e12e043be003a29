/*
NAME
  config_test.go

DESCRIPTION
  config_test.go tests that a TOML config file's values are merged into a
  runConfig only where the corresponding flag was not explicitly set.

AUTHOR
  Saxon A. Nelson-Milton <saxon.milton@gmail.com>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.
*/

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bdamux.toml")
	const toml = `
input = "/tmp/in.es"
output = "/tmp/out.script"
skip_first_n_frames = 3
two_pass = true
pbr_buffer_kib = 320
`
	if err := os.WriteFile(path, []byte(toml), 0o644); err != nil {
		t.Fatalf("writing test config: %v", err)
	}

	cfg := defaultConfig()
	cfg.Output = "/flag/override.script" // simulate a CLI flag already set.

	got, err := loadConfigFile(cfg, path, map[string]bool{"output": true})
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}

	if got.Input != "/tmp/in.es" {
		t.Errorf("Input = %q, want /tmp/in.es", got.Input)
	}
	if got.Output != "/flag/override.script" {
		t.Errorf("Output = %q, want flag value to survive unmerged", got.Output)
	}
	if got.SkipFirstNFrames != 3 {
		t.Errorf("SkipFirstNFrames = %d, want 3", got.SkipFirstNFrames)
	}
	if !got.TwoPass {
		t.Error("TwoPass = false, want true")
	}
	if got.PbrBufferKiB != 320 {
		t.Errorf("PbrBufferKiB = %d, want 320", got.PbrBufferKiB)
	}
}

func TestLoadConfigFileNoPath(t *testing.T) {
	cfg := defaultConfig()
	got, err := loadConfigFile(cfg, "", nil)
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if got != cfg {
		t.Error("expected unchanged config when no path given")
	}
}
