package etl

import (
	"fmt"
	"strings"
)

// NYC 311 exports use US-style timestamps like "03/01/2024 12:30:00 PM".
const sourceTimestampFormat = `%m/%d/%Y %I:%M:%S %p`

// columnRoles holds the original header names picked for each derived
// column. An empty field means no matching header was found and the
// derived column is skipped.
type columnRoles struct {
	CreatedDate string
	ClosedDate  string
	IncidentZip string
	Latitude    string
	Longitude   string
}

// detectColumns maps headers to roles by fuzzy name matching. An exact
// "created_date" style match always wins over a looser "created"+"date"
// match earlier in the header row.
func detectColumns(headers []string) columnRoles {
	var roles columnRoles
	for _, header := range headers {
		normalized := strings.ToLower(header)
		normalized = strings.ReplaceAll(normalized, " ", "_")
		normalized = strings.ReplaceAll(normalized, "-", "_")

		if strings.Contains(normalized, "created_date") ||
			(roles.CreatedDate == "" && strings.Contains(normalized, "created") && strings.Contains(normalized, "date")) {
			roles.CreatedDate = header
		}
		if strings.Contains(normalized, "closed_date") ||
			(roles.ClosedDate == "" && strings.Contains(normalized, "closed") && strings.Contains(normalized, "date")) {
			roles.ClosedDate = header
		}
		if strings.Contains(normalized, "incident_zip") ||
			(roles.IncidentZip == "" && strings.Contains(normalized, "zip")) {
			roles.IncidentZip = header
		}
		if strings.Contains(normalized, "latitude") {
			roles.Latitude = header
		}
		if strings.Contains(normalized, "longitude") {
			roles.Longitude = header
		}
	}
	return roles
}

// buildCleanedSelect keeps every original column and appends the derived
// ones the detected roles allow.
func buildCleanedSelect(headers []string, roles columnRoles) string {
	parts := make([]string, 0, len(headers)+5)
	for _, header := range headers {
		parts = append(parts, quoteIdent(header))
	}

	if roles.CreatedDate != "" {
		parts = append(parts, fmt.Sprintf("strptime(%s, '%s') AS created_ts", quoteIdent(roles.CreatedDate), sourceTimestampFormat))
	}
	if roles.ClosedDate != "" {
		parts = append(parts, fmt.Sprintf("strptime(%s, '%s') AS closed_ts", quoteIdent(roles.ClosedDate), sourceTimestampFormat))
	}
	if roles.CreatedDate != "" && roles.ClosedDate != "" {
		created := fmt.Sprintf("strptime(%s, '%s')", quoteIdent(roles.CreatedDate), sourceTimestampFormat)
		closed := fmt.Sprintf("strptime(%s, '%s')", quoteIdent(roles.ClosedDate), sourceTimestampFormat)
		parts = append(parts, fmt.Sprintf(
			"CASE WHEN %s IS NOT NULL AND %s IS NOT NULL THEN DATEDIFF('day', %s, %s) ELSE NULL END AS time_to_close_days",
			created, closed, created, closed))
	}
	if roles.Latitude != "" || roles.Longitude != "" {
		lat, lon := "NULL", "NULL"
		if roles.Latitude != "" {
			lat = quoteIdent(roles.Latitude)
		}
		if roles.Longitude != "" {
			lon = quoteIdent(roles.Longitude)
		}
		parts = append(parts, fmt.Sprintf(
			"(%s IS NOT NULL AND %s IS NOT NULL AND TRY_CAST(%s AS DOUBLE) <> 0 AND TRY_CAST(%s AS DOUBLE) <> 0) AS geocoded",
			lat, lon, lat, lon))
	}
	if roles.IncidentZip != "" {
		parts = append(parts, fmt.Sprintf("LPAD(CAST(%s AS VARCHAR), 5, '0') AS zip_code", quoteIdent(roles.IncidentZip)))
	}

	return strings.Join(parts, ", ")
}
