package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysglance/sysglance/internal/model"
)

func point(i int) model.HistoryPoint {
	return model.HistoryPoint{
		Timestamp:       time.Unix(int64(i), 0),
		CPUPercent:      float64(i),
		MemoryUsedBytes: uint64(i),
	}
}

func TestRingFillsUpToCapacity(t *testing.T) {
	r := New(5)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 5, r.Cap())

	for i := 1; i <= 3; i++ {
		r.Append(point(i))
	}
	assert.Equal(t, 3, r.Len())

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 1.0, snap[0].CPUPercent)
	assert.Equal(t, 3.0, snap[2].CPUPercent)
}

func TestRingEvictsOldestFirst(t *testing.T) {
	// After C+k appends the ring holds exactly the C most recent points,
	// oldest first.
	const capacity = 5
	r := New(capacity)
	for i := 1; i <= capacity+2; i++ {
		r.Append(point(i))
	}

	assert.Equal(t, capacity, r.Len())
	snap := r.Snapshot()
	require.Len(t, snap, capacity)
	for i, p := range snap {
		assert.Equal(t, float64(i+3), p.CPUPercent, "snapshot[%d]", i)
	}
}

func TestRingCapacityOneKeepsLatest(t *testing.T) {
	r := New(1)
	for i := 1; i <= 4; i++ {
		r.Append(point(i))
	}
	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, 4.0, snap[0].CPUPercent)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	r := New(3)
	r.Append(point(1))
	snap := r.Snapshot()

	r.Append(point(2))
	r.Append(point(3))
	r.Append(point(4)) // evicts point 1

	require.Len(t, snap, 1)
	assert.Equal(t, 1.0, snap[0].CPUPercent, "earlier snapshot must not see later appends")

	snap2 := r.Snapshot()
	require.Len(t, snap2, 3)
	assert.Equal(t, 2.0, snap2[0].CPUPercent)
}

func TestSnapshotChronologicalAcrossWrap(t *testing.T) {
	r := New(4)
	for i := 1; i <= 11; i++ {
		r.Append(point(i))
	}
	snap := r.Snapshot()
	require.Len(t, snap, 4)
	for i := 1; i < len(snap); i++ {
		assert.True(t, snap[i].Timestamp.After(snap[i-1].Timestamp))
	}
}
