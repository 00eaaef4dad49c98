package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultJobs, cfg.Jobs)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultBodyMaxLength, cfg.BodyMaxLength)
	assert.False(t, cfg.ExtractEntities)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ratom.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: 7\nmodel: big-model\nchannel_depth: 32\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Jobs)
	assert.Equal(t, "big-model", cfg.Model)
	assert.Equal(t, 32, cfg.ChannelDepth)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultJobs, cfg.Jobs)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: [not an int"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".ratom.yml")
	require.NoError(t, os.WriteFile(path, []byte("jobs: 7\n"), 0o644))
	t.Setenv(EnvJobs, "3")
	t.Setenv(EnvModel, "env-model")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Jobs)
	assert.Equal(t, "env-model", cfg.Model)
}

func TestEnvInvalidInteger(t *testing.T) {
	t.Setenv(EnvJobs, "many")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{Source: "/mail", OutputPath: "out.sqlite3", Jobs: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero jobs", func(c *Config) { c.Jobs = 0 }},
		{"negative jobs", func(c *Config) { c.Jobs = -4 }},
		{"no output", func(c *Config) { c.OutputPath = "" }},
		{"no source", func(c *Config) { c.Source = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestIntakeDepth(t *testing.T) {
	cfg := Config{Jobs: 3}
	assert.Equal(t, 3*DefaultChannelDepthPerWorker, cfg.IntakeDepth())

	cfg.ChannelDepth = 9
	assert.Equal(t, 9, cfg.IntakeDepth())
}
