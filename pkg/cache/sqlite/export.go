package sqlite

import (
	"fmt"

	"github.com/markwatch/markwatch/pkg/models"
)

// Export returns every cached entry as a flat record, most recently
// updated first. Intended for full backups; there is no incremental
// form.
func (c *Cache) Export() ([]models.CacheEntry, error) {
	rows, err := c.db.Query(
		`SELECT ` + entryColumns + ` FROM trademark_cache ORDER BY last_updated DESC, serial_number`,
	)
	if err != nil {
		return nil, fmt.Errorf("cache export: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("cache export: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
