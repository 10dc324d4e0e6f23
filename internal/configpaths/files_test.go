package configpaths

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCandidatePathsUserFirst(t *testing.T) {
	tests := []struct {
		user  string
		which string
	}{
		{"/tmp/mine.yaml", "yaml"},
		{"/tmp/mine.yml", "yaml"},
		{"/tmp/mine.toml", "toml"},
		{"/tmp/mine.json", "json"},
		{"/tmp/mine.conf", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			j, y, to := ConfigCandidatePaths(tt.user)
			got := map[string][]string{"json": j, "yaml": y, "toml": to}
			require.NotEmpty(t, got[tt.which])
			assert.Equal(t, tt.user, got[tt.which][0])
		})
	}
}

func TestDefaultNamedConfigPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG layout only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	p, err := DefaultNamedConfigPath("serve", "yml")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "padbridge", "serve.yaml"), p)

	p, err = DefaultNamedConfigPath("send", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "padbridge", "send.json"), p)
}
