package pipeline

import (
	"fmt"
	"io"
	"off-data-pipeline/internal/model"
	"text/tabwriter"
)

// PrintBrandReport writes the top rows of the report as an aligned table.
// limit <= 0 prints every row.
func PrintBrandReport(w io.Writer, report *model.BrandReport, limit int) error {
	rows := report.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	fmt.Fprintf(w, "\nBrand Analysis (Top %d brands by product count in %s):\n", len(rows), report.Country)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BRANDS\tAVG_NUTRISCORE\tPRODUCT_COUNT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%d\n", r.Brands, r.AvgNutriscore, r.ProductCount)
	}
	if len(rows) == 0 {
		fmt.Fprintln(tw, "(no brands)\t\t")
	}
	return tw.Flush()
}
