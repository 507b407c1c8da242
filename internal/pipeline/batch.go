package pipeline

// Partition splits entries into contiguous batches of size entries, the last
// one possibly shorter. Concatenating the batches reproduces entries exactly.
// A size below 1 is treated as 1; an empty manifest yields no batches.
func Partition(entries []ManifestEntry, size int) []Batch {
	if size < 1 {
		size = 1
	}
	batches := make([]Batch, 0, (len(entries)+size-1)/size)
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		batches = append(batches, Batch{
			Index:   len(batches),
			Entries: entries[start:end:end],
		})
	}
	return batches
}
