package allowlist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "allowlist.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadUnconfigured(t *testing.T) {
	list, err := Load("", nil)
	require.NoError(t, err)
	assert.True(t, list.Empty())

	// allow-all invariant: everything is permitted
	assert.True(t, list.Permits("10.1.2.3"))
	assert.True(t, list.Permits("255.255.255.255"))
	assert.True(t, list.Permits("not-an-address"))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestLoadMalformedFile(t *testing.T) {
	path := writeFile(t, "{not json")
	_, err := Load(path, nil)
	require.ErrorIs(t, err, ErrInvalidFile)
}

func TestLoadNoPrefixes(t *testing.T) {
	_, err := Load(writeFile(t, `{"prefixes": []}`), nil)
	require.ErrorIs(t, err, ErrNoValidBlocks)

	_, err = Load(writeFile(t, `{}`), nil)
	require.ErrorIs(t, err, ErrNoValidBlocks)
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	path := writeFile(t, `{"prefixes": [
		{"ipv4Prefix": "10.0.0.0/8"},
		{"ipv4Prefix": "bogus"},
		{"ipv6Prefix": "2001:db8::/32"},
		{"ipv4Prefix": "10.0.0.0/33"}
	]}`)
	list, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Len())
	assert.True(t, list.Permits("10.20.30.40"))
}

func TestLoadAllEntriesInvalid(t *testing.T) {
	path := writeFile(t, `{"prefixes": [
		{"ipv4Prefix": "bogus"},
		{"ipv6Prefix": "2001:db8::/32"}
	]}`)
	_, err := Load(path, nil)
	require.ErrorIs(t, err, ErrNoValidBlocks)
}

func TestPermitsBoundaries(t *testing.T) {
	path := writeFile(t, `{"prefixes": [
		{"ipv4Prefix": "192.168.1.0/24"},
		{"ipv4Prefix": "10.0.0.0/30"}
	]}`)
	list, err := Load(path, nil)
	require.NoError(t, err)

	tests := []struct {
		ip      string
		allowed bool
	}{
		{"192.168.1.0", true},   // first address in range
		{"192.168.1.255", true}, // last address in range
		{"192.168.1.128", true},
		{"192.168.2.0", false},
		{"192.168.0.255", false},
		{"10.0.0.0", true},
		{"10.0.0.3", true},
		{"10.0.0.4", false},
		{"8.8.8.8", false},
		{"", false},
		{"garbage", false},
		{"2001:db8::1", false}, // non-IPv4 never matches
	}
	for _, tc := range tests {
		assert.Equal(t, tc.allowed, list.Permits(tc.ip), "ip %q", tc.ip)
	}
}
