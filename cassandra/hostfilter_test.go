package cassandra

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostFilterMatch(t *testing.T) {
	f, err := NewHostFilter(`dc == "east" && rack != "r3" && port == 9042`)
	require.NoError(t, err)
	require.Equal(t, `dc == "east" && rack != "r3" && port == 9042`, f.String())

	ok, err := f.Match("10.0.0.1", "east", "r1", "id-1", 9042)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.Match("10.0.0.1", "east", "r3", "id-1", 9042)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.Match("10.0.0.2", "west", "r1", "id-2", 9042)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHostFilterAddressPrefix(t *testing.T) {
	f, err := NewHostFilter(`address startsWith "10.1."`)
	require.NoError(t, err)
	ok, err := f.Match("10.1.4.2", "", "", "", 9042)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestHostFilterRejectsNonBoolean(t *testing.T) {
	_, err := NewHostFilter(`port + 1`)
	require.Error(t, err)
	_, err = NewHostFilter(`unknown_field == 1`)
	require.Error(t, err)
}
