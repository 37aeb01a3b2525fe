package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

const exportPageSize = 500

// ParquetEvent is the columnar layout written by ExportParquet. Attributes
// stay JSON encoded.
type ParquetEvent struct {
	ID         int64  `parquet:"name=id, type=INT64"`
	EventID    string `parquet:"name=event_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Subject    string `parquet:"name=subject, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet streams every journaled event matching f into out as a
// snappy-compressed parquet file and returns the number of rows written.
// f.Limit is ignored; the whole journal after f.AfterID is exported.
func (ix *Indexer) ExportParquet(ctx context.Context, out io.Writer, f Filter) (int, error) {
	if out == nil {
		return 0, errors.New("indexer: nil export writer")
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(out), new(ParquetEvent), 1)
	if err != nil {
		return 0, fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	page := f
	page.Limit = exportPageSize
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		records, err := ix.List(ctx, page)
		if err != nil {
			return written, err
		}
		for _, rec := range records {
			row := &ParquetEvent{
				ID:         int64(rec.ID),
				EventID:    rec.EventID.String(),
				Type:       rec.Type,
				Subject:    rec.Subject,
				Attributes: rec.Attributes,
				CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
			if err := pw.Write(row); err != nil {
				return written, fmt.Errorf("indexer: write parquet row %d: %w", rec.ID, err)
			}
			written++
		}
		if len(records) < exportPageSize {
			break
		}
		page.AfterID = records[len(records)-1].ID
	}
	if err := pw.WriteStop(); err != nil {
		return written, fmt.Errorf("indexer: finish parquet: %w", err)
	}
	return written, nil
}
