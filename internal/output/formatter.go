package output

import (
	"fmt"
	"io"

	"github.com/contriblens/contriblens/internal/models"
)

// Formatter renders an aggregation result to a writer
type Formatter interface {
	Format(result *models.AggregationResult, w io.Writer) error
}

// Format identifies an output format by name
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
)

// NewFormatter creates the formatter for the given format name
func NewFormatter(format Format) (Formatter, error) {
	switch format {
	case FormatTable, "":
		return &TableFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatCSV:
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}
