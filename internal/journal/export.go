package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Export writes every entry recorded within [start, end] to w as JSON lines
// of decoded Records. It returns the number of records written.
func Export(ctx context.Context, store Store, w io.Writer, start, end time.Time) (int, error) {
	entries, err := store.Range(ctx, start, end)
	if err != nil {
		return 0, err
	}
	records, err := DecodeAll(entries)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return i, fmt.Errorf("write journal export: %w", err)
		}
	}
	return len(records), nil
}
