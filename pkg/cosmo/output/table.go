package output

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// KeyValue is one row of a two-column table.
type KeyValue struct {
	Key   string
	Value string
}

func WriteKeyValues(w io.Writer, rows []KeyValue) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	for _, row := range rows {
		value := row.Value
		if value == "" {
			value = "-"
		}
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", row.Key, value)
	}
	_ = tw.Flush()
}

// FormatTime renders t in UTC, or "-" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
