package transaction

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Ids_Are_Unique_And_Increasing(t *testing.T) {
	a, b := New(), New()
	assert.Less(t, a.GetID(), b.GetID())

	wg := sync.WaitGroup{}
	ids := make([]TxnID, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = New().GetID()
		}(i)
	}
	wg.Wait()

	seen := map[TxnID]bool{}
	for _, id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestPermission_String(t *testing.T) {
	assert.Equal(t, "READ_ONLY", ReadOnly.String())
	assert.Equal(t, "READ_WRITE", ReadWrite.String())
}
