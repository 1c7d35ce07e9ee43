package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestResolve(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, Set("supabase", "from-keyring"))

	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	tests := []struct {
		name string
		ref  Ref
		want string
	}{
		{"inline wins", Ref{Value: " inline ", File: path, KeyringAccount: "supabase"}, "inline"},
		{"file", Ref{File: path, KeyringAccount: "supabase"}, "from-file"},
		{"keyring", Ref{KeyringAccount: "supabase"}, "from-keyring"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Missing(t *testing.T) {
	keyring.MockInit()

	_, err := Resolve(Ref{})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(Ref{KeyringAccount: "nobody"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Resolve(Ref{File: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	assert.True(t, Ref{}.IsZero())
	assert.False(t, Ref{File: "x"}.IsZero())
}

func TestSetDelete(t *testing.T) {
	keyring.MockInit()

	assert.Error(t, Set("", "v"))
	assert.Error(t, Set("acct", " "))

	require.NoError(t, Set("acct", "v"))
	require.NoError(t, Delete("acct"))
	assert.ErrorIs(t, Delete("acct"), ErrNotFound)
}
