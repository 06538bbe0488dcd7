package output

import (
	"encoding/json"
	"io"

	"github.com/driftgate/driftgate/internal/models"
)

// JSONFormatter emits the report verbatim for machine consumers
type JSONFormatter struct{}

func (f *JSONFormatter) Format(report *models.Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
