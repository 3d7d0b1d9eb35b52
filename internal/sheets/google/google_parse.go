package google

import (
	"fmt"
	"strings"

	ports "findash/internal/sheets"
)

// tableFromValues converts a values matrix (as returned by Sheets API) into a
// raw table. Cells are rendered with fmt.Sprint; ragged rows are kept as-is.
func tableFromValues(source string, values [][]interface{}) *ports.Table {
	records := make([][]string, 0, len(values))
	for _, row := range values {
		records = append(records, toStrings(row))
	}
	return ports.NewTable(source, records)
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		if v == nil {
			continue
		}
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
