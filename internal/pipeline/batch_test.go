package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func entries(n int) []ManifestEntry {
	out := make([]ManifestEntry, n)
	for i := range out {
		out[i] = ManifestEntry{RelPath: fmt.Sprintf("doc%02d.md", i)}
	}
	return out
}

func TestPartitionLossless(t *testing.T) {
	manifest := entries(7)
	for size := 1; size <= 9; size++ {
		batches := Partition(manifest, size)

		var joined []ManifestEntry
		for i, b := range batches {
			assert.Equal(t, i, b.Index)
			assert.LessOrEqual(t, len(b.Entries), size)
			if i < len(batches)-1 {
				assert.Len(t, b.Entries, size, "only the last batch may be short")
			}
			joined = append(joined, b.Entries...)
		}
		assert.Equal(t, manifest, joined, "size %d", size)
		assert.Len(t, batches, (len(manifest)+size-1)/size)
	}
}

func TestPartitionTenOfTwentyFive(t *testing.T) {
	batches := Partition(entries(25), 10)
	if assert.Len(t, batches, 3) {
		assert.Len(t, batches[0].Entries, 10)
		assert.Len(t, batches[1].Entries, 10)
		assert.Len(t, batches[2].Entries, 5)
	}
}

func TestPartitionEmpty(t *testing.T) {
	assert.Empty(t, Partition(nil, 10))
}

func TestPartitionClampsSize(t *testing.T) {
	assert.Len(t, Partition(entries(3), 0), 3)
}

func TestPartitionDoesNotAlias(t *testing.T) {
	manifest := entries(4)
	batches := Partition(manifest, 2)
	_ = append(batches[0].Entries, ManifestEntry{RelPath: "intruder"})
	assert.Equal(t, "doc02.md", manifest[2].RelPath)
}
