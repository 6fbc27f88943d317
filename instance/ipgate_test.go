package instance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certward/certward/allowlist"
)

func loadList(t *testing.T, contents string) *allowlist.List {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blocks.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	list, err := allowlist.Load(path, nil)
	require.NoError(t, err)
	return list
}

func TestIPGatesDefaultAllowAll(t *testing.T) {
	m := New(&stubSigner{})
	assert.True(t, m.VerifyCertRefreshIP("203.0.113.7"))
	assert.True(t, m.VerifyInstanceRegisterIP("203.0.113.7"))
}

func TestIPGatesIndependentLists(t *testing.T) {
	refresh := loadList(t, `{"prefixes": [{"ipv4Prefix": "10.1.0.0/16"}]}`)
	register := loadList(t, `{"prefixes": [{"ipv4Prefix": "192.168.0.0/24"}]}`)

	m := New(&stubSigner{},
		WithRefreshAllowlist(refresh),
		WithRegisterAllowlist(register),
	)

	assert.True(t, m.VerifyCertRefreshIP("10.1.44.2"))
	assert.False(t, m.VerifyCertRefreshIP("192.168.0.10"))

	assert.True(t, m.VerifyInstanceRegisterIP("192.168.0.10"))
	assert.False(t, m.VerifyInstanceRegisterIP("10.1.44.2"))
}
