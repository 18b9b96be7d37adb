package main

import (
	"testing"
	"time"

	"github.com/anacrolix/tagflag"
	"github.com/google/go-cmp/cmp"

	"github.com/ahamlinman/zipstream/internal/config"
)

func TestFlagsOverrideConfig(t *testing.T) {
	env := map[string]string{
		"RESPONSE_DELAY": "0.5",
		"PHOTOS_DIR":     "/srv/photos",
		"ARCHIVER":       "memory",
	}
	cfg, err := config.FromEnv(func(k string) string { return env[k] })
	if err != nil {
		t.Fatal(err)
	}

	f := flagsFromConfig(cfg)
	if diff := cmp.Diff(cfg, f.config()); diff != "" {
		t.Errorf("config changed without overrides (-want +got)\n%s", diff)
	}

	f.ChunkSize = 1 << 20
	f.Port = 9000

	want := cfg
	want.ChunkSize = 1 << 20
	want.Port = 9000
	if diff := cmp.Diff(want, f.config()); diff != "" {
		t.Errorf("wrong config after overrides (-want +got)\n%s", diff)
	}
	if got := f.config().Delay; got != 500*time.Millisecond {
		t.Errorf("delay from environment = %v; want 500ms", got)
	}
}

func TestParseFlags(t *testing.T) {
	f := flagsFromConfig(config.Default())
	// ParseArgs exits the process on parse errors rather than returning them.
	tagflag.ParseArgs(&f, []string{
		"-photos-dir=/srv/photos",
		"-chunk-size=1KiB",
		"-index-file=/srv/index.html",
		"-delay=250ms",
		"-archiver=memory",
	})

	want := config.Default()
	want.PhotosDir = "/srv/photos"
	want.ChunkSize = 1 << 10
	want.IndexFile = "/srv/index.html"
	want.Delay = 250 * time.Millisecond
	want.Archiver = config.ArchiverMemory
	if diff := cmp.Diff(want, f.config()); diff != "" {
		t.Errorf("wrong config from flags (-want +got)\n%s", diff)
	}
}
