package common

import (
	"os"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapIO_Matches_ErrIO_And_Keeps_Cause(t *testing.T) {
	_, cause := os.Open("/definitely/not/here")
	require.Error(t, cause)

	err := WrapIO(cause, "reading page %d", 3)

	assert.ErrorIs(t, err, ErrIO)
	assert.True(t, os.IsNotExist(errors.Cause(err).(*ioError).cause))
	assert.Contains(t, err.Error(), "reading page 3")
	assert.Nil(t, WrapIO(nil, "nothing"))
}

func TestWrapped_Sentinels_Are_Matched_By_ErrorsIs(t *testing.T) {
	err := errors.Wrapf(ErrIndexOutOfRange, "field %d out of [0, %d)", 5, 2)

	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.NotErrorIs(t, err, ErrTypeMismatch)
}

func TestRecordID_Equals(t *testing.T) {
	a := NewRecordID(NewPageID(1, 2), 3)
	b := NewRecordID(NewPageID(1, 2), 3)
	c := NewRecordID(NewPageID(1, 2), 4)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(c))
	assert.False(t, a.Equals(nil))

	var n *RecordID
	assert.True(t, n.Equals(nil))
}

func TestStats_Concurrent_Incr(t *testing.T) {
	s := NewStats()
	wg := sync.WaitGroup{}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Incr("hit")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1000), s.Get("hit"))
	assert.Equal(t, map[string]int64{"hit": 1000}, s.Snapshot())
}

func TestClone_Does_Not_Share_Memory(t *testing.T) {
	src := []byte("selam")
	dst := Clone(src)
	dst[0] = 'x'

	assert.Equal(t, []byte("selam"), src)
	assert.Nil(t, Clone(nil))
}
