package repository

import (
	"context"
	"errors"
	"fmt"
)

// CopyResult counts what CopyDocuments did per id.
type CopyResult struct {
	Copied  []string
	Skipped []string
	Missing []string
}

// CopyDocuments copies each id from src to dst. A document that already
// exists in dst is left alone unless overwrite is set, in which case it is
// replaced at its current version.
func CopyDocuments(ctx context.Context, src, dst DocumentStore, ids []string, overwrite bool) (CopyResult, error) {
	var res CopyResult
	for _, id := range ids {
		doc, err := src.Read(ctx, id)
		if errors.Is(err, ErrNotFound) {
			res.Missing = append(res.Missing, id)
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read %s: %w", id, err)
		}

		existing, err := dst.Read(ctx, id)
		var version int64
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return res, fmt.Errorf("read target %s: %w", id, err)
		default:
			if !overwrite {
				res.Skipped = append(res.Skipped, id)
				continue
			}
			version = existing.Version
		}

		if _, err := dst.Write(ctx, id, doc.Data, version); err != nil {
			return res, fmt.Errorf("write %s: %w", id, err)
		}
		res.Copied = append(res.Copied, id)
	}
	return res, nil
}
