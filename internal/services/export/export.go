// Package export streams attendance records as CSV.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/classchain/classchain/internal/entity"
)

// batchSize bounds how many rows one database read pulls into memory.
const batchSize = 100

var header = []string{"ID", "Student Name", "Student ID", "Room", "Semester", "Classes", "Date"}

type RecordReader interface {
	RecordRows(ctx context.Context, adminID int64, filter entity.RecordFilter, limit, offset int) ([]entity.RecordRow, error)
}

type Exporter struct {
	log     *slog.Logger
	records RecordReader
}

func New(log *slog.Logger, records RecordReader) *Exporter {
	return &Exporter{log: log, records: records}
}

// Stream writes the header and every matching record to w, reading in
// fixed-size batches. It stops when a batch comes back short. A read error
// aborts the stream; bytes already flushed stay delivered, there is no
// rollback over a chunked response.
func (e *Exporter) Stream(ctx context.Context, w io.Writer, adminID int64, filter entity.RecordFilter) error {
	const op = "export.Stream"

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	offset := 0
	total := 0
	for {
		batch, err := e.records.RecordRows(ctx, adminID, filter, batchSize, offset)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		for _, rec := range batch {
			row := []string{
				strconv.FormatInt(rec.ID, 10),
				rec.StudentName,
				rec.StudentUID,
				rec.Room,
				rec.Semester,
				strings.Join(rec.Classes, ";"),
				rec.Date.Format("2006-01-02 15:04:05"),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}

		total += len(batch)
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if len(batch) < batchSize {
			break
		}
		offset += batchSize
	}

	e.log.Info("export finished", slog.Int64("adminID", adminID), slog.Int("records", total))

	return nil
}
