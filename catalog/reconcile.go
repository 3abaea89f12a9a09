package catalog

import (
	"context"
	"fmt"

	"github.com/mwantia/blockfile/data"
)

// reconcile finishes deletions interrupted by a crash. Entries that were
// persisted as deleted lose their block objects and are dropped; the
// catalog is written once if anything was dropped. Entries whose purge
// fails stay deleted and are retried on the next load.
func (c *Catalog) reconcile(ctx context.Context) {
	var pending []data.Entry
	c.entries.Scan(func(_ data.EntryKey, s *slot) bool {
		if s.Deleted {
			pending = append(pending, s.Entry)
		}
		return true
	})

	if len(pending) == 0 {
		return
	}

	errs := data.Errors{}
	dropped := 0

	for _, entry := range pending {
		removed, err := c.layout.Purge(ctx, c.store, entry.Path, entry.BlockSize)
		if err != nil {
			errs.Add(fmt.Errorf("%s '%s': %w", entry.Type, entry.Path, err))
			continue
		}

		c.entries.Delete(entry.Key())
		dropped++

		c.log.Debug("Reconciled %s '%s', removed %d block objects", entry.Type, entry.Path, removed)
	}

	if err := errs.Errors(); err != nil {
		c.log.Warn("Failed to reconcile %d deleted entries: %v", errs.Len(), err)
	}

	if dropped == 0 {
		return
	}

	c.dirty = true
	if err := c.persist(ctx); err != nil {
		// The dropped entries are written by the next persisting mutation
		c.log.Error("Failed to persist reconciled catalog: %v", err)
		return
	}

	c.log.Info("Reconciled catalog '%s', dropped %d deleted entries", c.key, dropped)
}
