package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_ParsesServersAndAuth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flowmesh.yaml")
	content := "servers:\n  - mesh://a:4222\n  - mesh://b:4222\nuser: alice\npassword: secret\nmax_reconnects: 5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"mesh://a:4222", "mesh://b:4222"}, f.Servers)
	require.Equal(t, "alice", f.User)
	require.Equal(t, 5, f.MaxReconnects)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	require.Error(t, err)
}
