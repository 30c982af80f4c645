package aggmap_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/stackprof/pkg/aggmap"
)

func newKey(pid uint32, stackID int64, comm string) aggmap.Key {
	key := aggmap.Key{Pid: pid, StackID: stackID}
	copy(key.Comm[:], comm)

	return key
}

func TestTable_IncrementOrInsert(t *testing.T) {
	table := aggmap.NewTable()
	key := newKey(1, 7, "worker-1")

	for i := 0; i < 3; i++ {
		require.True(t, table.IncrementOrInsert(key))
	}

	count, ok := table.Get(key)
	require.True(t, ok)
	require.Equal(t, uint32(3), count)
	require.Equal(t, 1, table.Len())
}

func TestTable_GetAbsent(t *testing.T) {
	table := aggmap.NewTable()

	_, ok := table.Get(newKey(1, 7, "worker-1"))
	require.False(t, ok)
}

func TestTable_DistinctKeys(t *testing.T) {
	table := aggmap.NewTable()

	// The stack identifier may carry the capture-failure sentinel:
	// such samples aggregate under their own key.
	keys := []aggmap.Key{
		newKey(1, 7, "worker-1"),
		newKey(1, 7, "worker-2"),
		newKey(1, -1, "worker-1"),
		newKey(2, 7, "worker-1"),
	}
	for _, key := range keys {
		require.True(t, table.IncrementOrInsert(key))
	}

	require.Equal(t, len(keys), table.Len())
	for _, key := range keys {
		count, ok := table.Get(key)
		require.True(t, ok)
		require.Equal(t, uint32(1), count)
	}
}

func TestTable_RejectsWhenFull(t *testing.T) {
	table := aggmap.NewTable(aggmap.WithCapacity(4))

	for i := 0; i < 4; i++ {
		require.True(t, table.IncrementOrInsert(newKey(1, int64(i), "worker")))
	}

	// The (max+1)-th distinct key is rejected and the table is
	// left unchanged.
	require.False(t, table.IncrementOrInsert(newKey(1, 99, "worker")))
	require.Equal(t, 4, table.Len())

	_, ok := table.Get(newKey(1, 99, "worker"))
	require.False(t, ok)

	// Existing keys still increment at capacity.
	require.True(t, table.IncrementOrInsert(newKey(1, 0, "worker")))
	count, ok := table.Get(newKey(1, 0, "worker"))
	require.True(t, ok)
	require.Equal(t, uint32(2), count)
}

func TestTable_IterateAndReset(t *testing.T) {
	table := aggmap.NewTable()

	keyA := newKey(1, 1, "worker-a")
	keyB := newKey(1, 2, "worker-b")
	for i := 0; i < 5; i++ {
		table.IncrementOrInsert(keyA)
	}
	table.IncrementOrInsert(keyB)

	drained := make(map[aggmap.Key]uint32)
	table.IterateAndReset(func(key aggmap.Key, count uint32) {
		drained[key] = count
	})
	require.Equal(t, uint32(5), drained[keyA])
	require.Equal(t, uint32(1), drained[keyB])

	// Counters are reset, keys stay resident.
	count, ok := table.Get(keyA)
	require.True(t, ok)
	require.Equal(t, uint32(0), count)

	drained = make(map[aggmap.Key]uint32)
	table.IterateAndReset(func(key aggmap.Key, count uint32) {
		drained[key] = count
	})
	require.Empty(t, drained)
}

func TestTable_ConcurrentIncrements(t *testing.T) {
	const units = 8
	const perUnit = 1000

	table := aggmap.NewTable()
	key := newKey(1, 7, "worker-1")

	// Insert first so that concurrent increments cannot race on the
	// initial claim: single-key increment is atomic.
	require.True(t, table.IncrementOrInsert(key))

	var wg sync.WaitGroup
	for i := 0; i < units; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perUnit; j++ {
				table.IncrementOrInsert(key)
			}
		}()
	}
	wg.Wait()

	count, ok := table.Get(key)
	require.True(t, ok)
	require.Equal(t, uint32(1+units*perUnit), count)
	require.Equal(t, 1, table.Len())
}
