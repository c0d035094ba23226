package library

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ImportFailure describes a CSV row that did not become a book.
type ImportFailure struct {
	Line    int
	Message string
}

// ImportReport summarises an ImportBooks run.
type ImportReport struct {
	Added    []int64
	Failures []ImportFailure
}

// ImportBooks adds one book per `title,author,copies` CSV row read from r.
// An optional header row whose first field is "title" is skipped. Bad rows
// are reported and skipped; only an unreadable stream aborts the import.
func (c *Catalog) ImportBooks(r io.Reader) (ImportReport, error) {
	var report ImportReport

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	for first := true; ; first = false {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
			report.Failures = append(report.Failures, ImportFailure{
				Line:    parseErr.Line,
				Message: fmt.Sprintf("expected 3 fields, got %d", len(rec)),
			})
			continue
		}
		if err != nil {
			return report, fmt.Errorf("read books csv: %w", err)
		}

		line, _ := cr.FieldPos(0)
		if first && strings.EqualFold(strings.TrimSpace(rec[0]), "title") {
			continue
		}

		copies, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			report.Failures = append(report.Failures, ImportFailure{Line: line, Message: "Total copies must be a number."})
			continue
		}

		res := c.AddBook(strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1]), copies)
		if !res.OK {
			report.Failures = append(report.Failures, ImportFailure{Line: line, Message: res.Message})
			continue
		}
		report.Added = append(report.Added, res.ID)
	}

	c.log.Info("Books imported", zap.Int("added", len(report.Added)), zap.Int("failed", len(report.Failures)))
	return report, nil
}
