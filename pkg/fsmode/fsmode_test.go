package fsmode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nativerv/eunix/pkg/fsmode"
)

func TestGetterWitherRoundTrip(t *testing.T) {
	base := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, fsmode.PermRead, fsmode.PermRead)

	t.Run("free", func(t *testing.T) {
		m := base.WithFree(true)
		require.True(t, m.Free())
		m = m.WithFree(false)
		require.False(t, m.Free())
	})

	t.Run("file_type preserves other fields", func(t *testing.T) {
		m := base.WithFileType(fsmode.Dir)
		require.Equal(t, fsmode.Dir, m.FileType())
		require.Equal(t, base.User(), m.User())
		require.Equal(t, base.Group(), m.Group())
		require.Equal(t, base.Others(), m.Others())
	})

	t.Run("all five file types round-trip", func(t *testing.T) {
		for _, ft := range []fsmode.FileType{fsmode.File, fsmode.Dir, fsmode.Sys, fsmode.Block, fsmode.Char} {
			m := base.WithFileType(ft)
			require.Equal(t, ft, m.FileType())
		}
	})

	t.Run("user/group/others round-trip", func(t *testing.T) {
		m := base.WithUser(fsmode.PermExec).WithGroup(fsmode.PermWrite).WithOthers(0)
		require.Equal(t, fsmode.PermExec, m.User())
		require.Equal(t, fsmode.PermWrite, m.Group())
		require.Equal(t, fsmode.Perm(0), m.Others())
	})
}

func TestBitPositions(t *testing.T) {
	m := fsmode.New(true, fsmode.Block, fsmode.PermRead, 0, 0)
	// free=1, file_type=Block(3) -> bits 15 and 14..12 = 011
	require.Equal(t, fsmode.FileMode(1<<15|3<<12|4<<9), m)
}

func TestPermFor(t *testing.T) {
	m := fsmode.New(false, fsmode.File, fsmode.PermRead|fsmode.PermWrite, fsmode.PermRead, 0)

	require.Equal(t, fsmode.PermRead|fsmode.PermWrite, m.PermFor(1000, 1000, 1000, 1000, nil))
	require.Equal(t, fsmode.PermRead, m.PermFor(2000, 1000, 1000, 1000, nil))
	require.Equal(t, fsmode.PermRead, m.PermFor(2000, 1000, 2000, 1000, []uint32{1000}))
	require.Equal(t, fsmode.Perm(0), m.PermFor(2000, 1000, 2000, 1000, nil))
}
