package lineprog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTable_InternNumberedExplicit(t *testing.T) {
	ft := NewFileTable()

	idx, err := ft.Intern("main.c", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	entry := ft.Get(1)
	require.NotNil(t, entry)
	assert.Equal(t, "main.c", entry.Name)
}

func TestFileTable_RejectsNonPositiveSlot(t *testing.T) {
	ft := NewFileTable()

	_, err := ft.Intern("main.c", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileNumberTooSmall))

	_, err = ft.Intern("main.c", -3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileNumberTooSmall))
}

func TestFileTable_DuplicateSlotSamePathIsIdempotent(t *testing.T) {
	ft := NewFileTable()
	_, err := ft.Intern("dir/main.c", 2)
	require.NoError(t, err)

	_, err = ft.Intern("dir/main.c", 2)
	require.NoError(t, err)
}

func TestFileTable_DuplicateSlotDifferentPathErrors(t *testing.T) {
	ft := NewFileTable()
	_, err := ft.Intern("main.c", 2)
	require.NoError(t, err)

	_, err = ft.Intern("other.c", 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFileAlreadyAllocated))
}

func TestFileTable_SparseSlotsLeaveHoles(t *testing.T) {
	ft := NewFileTable()
	_, err := ft.Intern("main.c", 5)
	require.NoError(t, err)

	assert.Nil(t, ft.Get(1))
	assert.Nil(t, ft.Get(4))
	require.NotNil(t, ft.Get(5))
	assert.Equal(t, "main.c", ft.Get(5).Name)
}

// TestFileTable_FilesStopsAtHighWaterMark covers scenario S1's "file list
// has one entry" expectation: growFiles pads the backing slice to a
// growBlock-sized chunk (32), but Files() must only ever report the slots
// actually assigned, never the amortized padding past the highest one.
func TestFileTable_FilesStopsAtHighWaterMark(t *testing.T) {
	ft := NewFileTable()
	_, err := ft.Intern("a.c", 1)
	require.NoError(t, err)

	assert.Len(t, ft.Files(), 1)
	assert.Nil(t, ft.Get(2))
}

// TestFileTable_SparseSlotsStopAtHighWaterMark covers property 6: only
// the genuine intervening holes (1, 3, 4 below) belong to Files(), not
// every padded slot out to the next growBlock boundary past slot 5.
func TestFileTable_SparseSlotsStopAtHighWaterMark(t *testing.T) {
	ft := NewFileTable()
	_, err := ft.Intern("x.c", 5)
	require.NoError(t, err)

	files := ft.Files()
	require.Len(t, files, 5)
	assert.Nil(t, files[0]) // slot 1
	assert.Nil(t, files[1]) // slot 2
	assert.Nil(t, files[2]) // slot 3
	assert.Nil(t, files[3]) // slot 4
	require.NotNil(t, files[4])
	assert.Equal(t, "x.c", files[4].Name)
}

func TestFileTable_InternAutoReusesSameDirAndBase(t *testing.T) {
	ft := NewFileTable()
	first := ft.InternAuto("src/a.c")
	second := ft.InternAuto("src/a.c")
	assert.Equal(t, first, second)

	third := ft.InternAuto("src/b.c")
	assert.NotEqual(t, first, third)
}

func TestFileTable_DirectoryIsInterned(t *testing.T) {
	ft := NewFileTable()
	_, err := ft.Intern("src/main/a.c", 1)
	require.NoError(t, err)
	_, err = ft.Intern("src/main/b.c", 2)
	require.NoError(t, err)

	assert.Equal(t, ft.Get(1).Dir, ft.Get(2).Dir)
	assert.Equal(t, "src/main", ft.Dir(ft.Get(1).Dir))
}
