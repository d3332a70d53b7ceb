package passwd_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/passwd"
)

// TestPasswordRoundTrip is spec.md §8 scenario 5: serialize(parse(s)) == s,
// with no trailing newline at EOF.
func TestPasswordRoundTrip(t *testing.T) {
	input := "root:deadbeef:0:0::/root:/bin/sh\nalice:cafef00d:1000:1000:::"

	entries, err := passwd.Parse(input)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "root", entries[0].Name)
	require.Equal(t, uint32(0), entries[0].UID)
	require.Equal(t, "alice", entries[1].Name)
	require.Equal(t, uint32(1000), entries[1].GID)

	require.Equal(t, input, passwd.Serialize(entries))
}

func TestHashPasswordNoTrailingNewline(t *testing.T) {
	hashed := passwd.HashPassword("hunter2")
	require.Len(t, hashed, 64)
	require.NotEqual(t, hashed, passwd.HashPassword("hunter2\n"))
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := passwd.Parse("root:deadbeef:0:0:missing-fields\n")
	require.Error(t, err)
}

func TestBuildUIDMap(t *testing.T) {
	entries, err := passwd.Parse("root:deadbeef:0:0::/root:/bin/sh\n")
	require.NoError(t, err)
	m := passwd.BuildUIDMap(entries)
	require.Equal(t, "root", m[0])
}

func TestGroupRoundTrip(t *testing.T) {
	input := "wheel:x:10:root,alice"
	entries, err := passwd.ParseGroups(input)
	require.NoError(t, err)
	require.Equal(t, []string{"root", "alice"}, entries[0].Members)
	require.Equal(t, input, passwd.SerializeGroups(entries))
}
