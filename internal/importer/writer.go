package importer

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/assetdesk/assetdesk/internal/domain"
	"github.com/assetdesk/assetdesk/internal/repository"
)

// defaultChunkSize bounds how many rows go to the store in one write.
const defaultChunkSize = 50

// batchWriter persists classified candidates. Inserts go out in chunks
// with a per-row fallback when a chunk fails; updates are always one write
// per row. Chunks are processed sequentially, and the gap between chunks
// doubles as the cancellation checkpoint.
type batchWriter struct {
	assets    repository.AssetRepository
	log       *logrus.Entry
	chunkSize int
	progress  ProgressFunc
}

func (w *batchWriter) run(ctx context.Context, inserts []insertItem, updates []updateItem, rowErrors []ImportError) (CommitResult, error) {
	result := CommitResult{Errors: append([]ImportError{}, rowErrors...)}

	chunkSize := w.chunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	total := len(inserts) + len(updates)
	done := 0

	for start := 0; start < len(inserts); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + chunkSize
		if end > len(inserts) {
			end = len(inserts)
		}
		chunk := inserts[start:end]

		w.writeInsertChunk(ctx, chunk, &result)

		done += len(chunk)
		w.reportProgress(done, total)
	}

	for start := 0; start < len(updates); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + chunkSize
		if end > len(updates) {
			end = len(updates)
		}

		for _, item := range updates[start:end] {
			if item.patch.IsEmpty() {
				// Nothing beyond the tag in this row; count it as a
				// no-op success rather than a failure.
				result.Success++
				continue
			}
			if err := w.assets.UpdateByTag(ctx, item.tag, item.patch); err != nil {
				result.Errors = append(result.Errors, ImportError{Row: item.rowNum, Error: err.Error()})
				continue
			}
			result.Success++
		}

		done += end - start
		w.reportProgress(done, total)
	}

	return result, nil
}

// writeInsertChunk attempts one batch insert; on failure it degrades to
// inserting each row individually so a single bad row cannot block its
// siblings.
func (w *batchWriter) writeInsertChunk(ctx context.Context, chunk []insertItem, result *CommitResult) {
	batch := make([]domain.Asset, len(chunk))
	for i, item := range chunk {
		batch[i] = item.asset
	}

	err := w.assets.InsertMany(ctx, batch)
	if err == nil {
		result.Success += len(chunk)
		return
	}
	w.log.WithError(err).WithField("rows", len(chunk)).
		Warn("batch insert failed, retrying rows individually")

	for _, item := range chunk {
		if _, err := w.assets.InsertOne(ctx, item.asset); err != nil {
			result.Errors = append(result.Errors, ImportError{Row: item.rowNum, Error: err.Error()})
			continue
		}
		result.Success++
	}
}

func (w *batchWriter) reportProgress(done, total int) {
	if w.progress != nil {
		w.progress(done, total)
	}
}
