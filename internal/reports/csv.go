package reports

import (
	"encoding/csv"
	"io"
	"strconv"
)

var complianceHeader = []string{"key", "total", "compliant", "violated", "compliance_percent", "avg_business_hours", "avg_resolution", "avg_first_response"}

// WriteComplianceCSV writes rows with a header line.
func WriteComplianceCSV(w io.Writer, rows []ComplianceRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(complianceHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Key,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Compliant),
			strconv.Itoa(r.Violated),
			strconv.FormatFloat(r.CompliancePercent, 'f', 1, 64),
			strconv.FormatFloat(r.AvgBusinessHours, 'f', 2, 64),
			r.AvgResolution,
			r.AvgFirstResponse,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
