package dashboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/view"
)

// maxColumns keeps wide records readable.
const maxColumns = 6

var headings = map[rbac.Resource]string{
	rbac.ResourceUsers:       "Users",
	rbac.ResourceProperties:  "Properties",
	rbac.ResourceLeases:      "Leases",
	rbac.ResourceMaintenance: "Maintenance",
	rbac.ResourceInvoices:    "Invoices",
	rbac.ResourceExpenses:    "Expenses",
	rbac.ResourceReports:     "Reports",
	rbac.ResourceTenants:     "Tenants",
	rbac.ResourceProfile:     "Profile",
	rbac.ResourcePayments:    "Payments",
}

func headingFor(resource rbac.Resource) string {
	if h, ok := headings[resource]; ok {
		return h
	}
	return string(resource)
}

// tabulate turns a JSON array of objects into table columns and rows. The id
// column comes first; the others follow alphabetically.
func tabulate(raw json.RawMessage) ([]string, []view.Row, error) {
	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, nil, fmt.Errorf("dashboard: decode records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, nil
	}

	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	_, hasID := seen["id"]
	delete(seen, "id")
	columns := make([]string, 0, len(seen)+1)
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	if hasID {
		columns = append([]string{"id"}, columns...)
	}
	if len(columns) > maxColumns {
		columns = columns[:maxColumns]
	}

	rows := make([]view.Row, 0, len(records))
	for _, rec := range records {
		row := view.Row{Cells: make([]string, len(columns))}
		if id, ok := rec["id"]; ok {
			row.ID = cell(id)
		}
		for i, col := range columns {
			row.Cells[i] = cell(rec[col])
		}
		rows = append(rows, row)
	}

	labels := make([]string, len(columns))
	for i, col := range columns {
		labels[i] = label(col)
	}
	return labels, rows, nil
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%.2f", t)
	case map[string]any, []any:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

func label(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		if w == "id" {
			words[i] = "ID"
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
