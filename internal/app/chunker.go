package app

import "github.com/bft-labs/pryvlink/internal/domain"

// Partition splits calls into contiguous chunks of at most size calls,
// preserving order. The last chunk may be smaller. size <= 0 yields a single
// chunk.
func Partition(calls []domain.Call, size int) []domain.Chunk {
	if len(calls) == 0 {
		return nil
	}
	if size <= 0 || size > len(calls) {
		size = len(calls)
	}

	chunks := make([]domain.Chunk, 0, (len(calls)+size-1)/size)
	for start := 0; start < len(calls); start += size {
		end := start + size
		if end > len(calls) {
			end = len(calls)
		}
		chunks = append(chunks, domain.Chunk{Start: start, Calls: calls[start:end:end]})
	}
	return chunks
}

// Progress returns the completion percentage after done of total calls,
// rounded half up and clamped to [1, 99] while calls remain. Only done == total
// reports 100, so 199 of 200 reports 99 where plain rounding would give 100.
func Progress(done, total int) int {
	if total <= 0 || done >= total {
		return 100
	}
	p := (200*done + total) / (2 * total)
	if p < 1 && done > 0 {
		p = 1
	}
	if p > 99 {
		p = 99
	}
	return p
}
