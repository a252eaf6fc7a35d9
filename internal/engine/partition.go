package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Partition is a half-open row range [Start, End)
type Partition struct {
	Index int
	Start int
	End   int
}

// Partitions splits n rows into consecutive ranges of at most PartitionSize rows
func (s *Session) Partitions(n int) []Partition {
	if n <= 0 {
		return nil
	}
	parts := make([]Partition, 0, (n+s.partitionSize-1)/s.partitionSize)
	for start := 0; start < n; start += s.partitionSize {
		end := min(start+s.partitionSize, n)
		parts = append(parts, Partition{Index: len(parts), Start: start, End: end})
	}
	return parts
}

// ForEachPartition runs fn over the partitions of n rows with at most Workers goroutines.
// The first error cancels the context passed to the remaining calls and is returned.
func (s *Session) ForEachPartition(ctx context.Context, n int, fn func(ctx context.Context, p Partition) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, p := range s.Partitions(n) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, p)
		})
	}
	return g.Wait()
}
