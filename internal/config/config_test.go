package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestFromEnv(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		want    Config
		wantErr bool
	}{
		{
			name: "empty environment",
			want: Default(),
		},
		{
			name: "every option overridden",
			env: map[string]string{
				"LOGGING":        "yes",
				"RESPONSE_DELAY": "0.5",
				"PHOTOS_DIR":     "/srv/photos",
				"PORT":           "9000",
				"CHUNK_SIZE":     "1024",
				"INDEX_FILE":     "static/index.html",
				"ARCHIVER":       "Memory",
			},
			want: Config{
				Logging:   true,
				Delay:     500 * time.Millisecond,
				PhotosDir: "/srv/photos",
				Port:      9000,
				ChunkSize: 1024,
				IndexFile: "static/index.html",
				Archiver:  ArchiverMemory,
			},
		},
		{
			name: "single override keeps other defaults",
			env:  map[string]string{"CHUNK_SIZE": "8"},
			want: func() Config {
				c := Default()
				c.ChunkSize = 8
				return c
			}(),
		},
		{
			name: "logging switch not recognized",
			env:  map[string]string{"LOGGING": "on"},
			want: Default(),
		},
		{
			name:    "invalid port",
			env:     map[string]string{"PORT": "http"},
			wantErr: true,
		},
		{
			name:    "invalid delay",
			env:     map[string]string{"RESPONSE_DELAY": "soon"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromEnv(func(key string) string { return tc.env[key] })
			if tc.wantErr {
				if err == nil {
					t.Fatalf("FromEnv() succeeded with %+v; want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromEnv() failed: %v", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("wrong config (-want +got)\n%s", diff)
			}
		})
	}
}

func TestParseDelay(t *testing.T) {
	testCases := []struct {
		input string
		want  time.Duration
	}{
		{"0", 0},
		{"2", 2 * time.Second},
		{"0.25", 250 * time.Millisecond},
		{"150ms", 150 * time.Millisecond},
		{" 1s ", time.Second},
	}
	for _, tc := range testCases {
		got, err := ParseDelay(tc.input)
		if err != nil {
			t.Errorf("ParseDelay(%q) failed: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseDelay(%q) = %v; want %v", tc.input, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}

	invalid := []func(*Config){
		func(c *Config) { c.Delay = -time.Second },
		func(c *Config) { c.PhotosDir = "" },
		func(c *Config) { c.Port = 0 },
		func(c *Config) { c.Port = 70000 },
		func(c *Config) { c.ChunkSize = 0 },
		func(c *Config) { c.Archiver = "tar" },
	}
	for i, mutate := range invalid {
		c := Default()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: Validate() accepted %+v", i, c)
		}
	}
}

func TestAddr(t *testing.T) {
	if got := Default().Addr(); got != ":8080" {
		t.Errorf("Addr() = %q; want %q", got, ":8080")
	}
}
