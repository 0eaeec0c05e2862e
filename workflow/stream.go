package workflow

import "iter"

// Batch groups a sequence into slices of at most size items. The first error ends the sequence.
func Batch[T any](seq iter.Seq2[T, error], size int) iter.Seq2[[]T, error] {
	if size <= 0 {
		size = 1
	}
	return func(yield func([]T, error) bool) {
		batch := make([]T, 0, size)
		for item, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			batch = append(batch, item)
			if len(batch) == size {
				if !yield(batch, nil) {
					return
				}
				batch = make([]T, 0, size)
			}
		}
		if len(batch) > 0 {
			yield(batch, nil)
		}
	}
}

// Collect drains a sequence, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// ProgressFunc receives processed/total counters. Total is zero when unknown.
type ProgressFunc func(phase string, processed int64, total int64)

func (p ProgressFunc) report(phase string, processed int64, total int64) {
	if p != nil {
		p(phase, processed, total)
	}
}
