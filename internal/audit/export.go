package audit

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/grantdesk/grantdesk/internal/listing"
)

const (
	exportPageSize = 100
	// MaxExportRows caps one export; larger sets must be narrowed by filters.
	MaxExportRows = 5000
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

var csvHeader = []string{"at", "actor", "action", "entity", "entity_id", "detail"}

// Collect walks every page of the filtered set q, up to MaxExportRows rows.
// truncated reports whether rows were left out.
func Collect(ctx context.Context, fetch listing.Fetcher[Log], token string, q listing.Query) (rows []Log, truncated bool, err error) {
	q.Limit = exportPageSize
	for page := 0; ; page++ {
		q.Offset = page
		res, err := fetch(ctx, token, q.Params())
		if err != nil {
			return nil, false, fmt.Errorf("audit: export page %d: %w", page, err)
		}
		rows = append(rows, res.Data...)
		if len(rows) >= MaxExportRows {
			return rows[:MaxExportRows], res.Count > MaxExportRows, nil
		}
		if len(res.Data) == 0 || (page+1)*exportPageSize >= res.Count {
			return rows, false, nil
		}
	}
}

// WriteCSV streams rows as CRLF separated CSV with a header line.
func WriteCSV(w io.Writer, rows []Log) error {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for i, row := range rows {
		record := []string{
			row.At.UTC().Format(time.RFC3339),
			row.Actor,
			row.Action,
			row.Entity,
			row.EntityID,
			row.Detail,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
		if (i+1)%csvFlushEvery == 0 {
			writer.Flush()
			if err := writer.Error(); err != nil {
				return err
			}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
