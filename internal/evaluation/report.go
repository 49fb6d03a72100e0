package evaluation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteText renders the report as an aligned table. With perQuery every
// query gets a row before the mean.
func (r *Report) WriteText(w io.Writer, perQuery bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "query\t%s\n", strings.Join(r.Metrics, "\t"))
	if perQuery {
		for i, q := range r.QueryIDs {
			cells := make([]string, len(r.Metrics))
			for j, m := range r.Metrics {
				cells[j] = fmt.Sprintf("%.4f", r.Scores[m][i])
			}
			fmt.Fprintf(tw, "%s\t%s\n", q, strings.Join(cells, "\t"))
		}
	}

	cells := make([]string, len(r.Metrics))
	for j, m := range r.Metrics {
		cells[j] = fmt.Sprintf("%.4f", r.Means[m])
	}
	fmt.Fprintf(tw, "all\t%s\n", strings.Join(cells, "\t"))

	return tw.Flush()
}

// WriteJSON renders the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
