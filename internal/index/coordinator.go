package index

import "fmt"

// Flusher commits an index's buffered writes, making them crash-durable.
type Flusher interface {
	Flush() error
}

// Coordinator applies the cross-index flush ordering that crash consistency
// depends on: an index must be flushed only after every index holding the
// data it points into. For the backup engine that means the chunk index
// flushes before the snapshot index: a snapshot record that survives a
// crash must never reference chunk locations that did not.
//
// The actors themselves are independent and know nothing of each other;
// the ordering lives entirely here, in caller-side sequencing. Construct
// the Coordinator with the data-bearing indices first and the indices that
// reference them after.
type Coordinator struct {
	order  []Flusher
	logger Logger
}

// NewCoordinator creates a Coordinator that flushes the given indices in
// argument order.
func NewCoordinator(logger Logger, order ...Flusher) *Coordinator {
	return &Coordinator{order: order, logger: logger}
}

// Flush flushes every index in registration order, waiting for each to
// confirm durability before moving to the next. It stops at the first
// failure: if index i cannot flush, indices after it must not flush either,
// or their durable state could reference data that never became durable.
func (c *Coordinator) Flush() error {
	for i, f := range c.order {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flushing index %d of %d: %w", i+1, len(c.order), err)
		}
	}
	c.logger.Debug("checkpoint committed", "indices", len(c.order))
	return nil
}
