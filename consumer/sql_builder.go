package consumer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

// Table identifiers are formatted into SQL text, not bound as parameters, so
// they must come from validated configuration, never from data.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateIdentifier rejects anything that is not a plain (optionally
// schema-qualified) SQL identifier.
func ValidateIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid SQL identifier: %q", name)
	}
	return nil
}

// warehouseType maps a semantic column type to its warehouse DDL type.
func warehouseType(t processor.ColumnType) string {
	switch t.Kind {
	case processor.KindInteger:
		return "int"
	case processor.KindDecimal:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case processor.KindDate:
		return "date"
	default:
		return "varchar(255)"
	}
}

// BuildPreActionsSQL returns the SQL executed before the staging load:
// create the staging table if needed, then truncate it so every run loads
// into an empty table.
func BuildPreActionsSQL(stgTable string, schema *processor.ReportSchema) string {
	cols := make([]string, 0, schema.Len())
	for _, col := range schema.Columns() {
		cols = append(cols, fmt.Sprintf("%s %s", col.Name, warehouseType(col.Type)))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n);\n\ntruncate %s;",
		stgTable, strings.Join(cols, ",\n"), stgTable)
}

// BuildPostActionsSQL returns the SQL executed after the staging load, in
// the same transaction: delete the target rows inside the date range, then
// reinsert them from staging with an etl_timestamp. Rerunning a job for the
// same range therefore replaces rather than duplicates.
func BuildPostActionsSQL(targetTable, stgTable, rangeColumn, startDate, endDate string, schema *processor.ReportSchema) string {
	cols := strings.Join(schema.Names(), ",\n")

	var b strings.Builder
	fmt.Fprintf(&b, "delete from %s\nwhere %s between '%s' and '%s';\n\n", targetTable, rangeColumn, startDate, endDate)
	fmt.Fprintf(&b, "insert into %s (\n%s,\netl_timestamp\n)\nselect\n%s,\ncurrent_timestamp as etl_timestamp\nfrom %s\nwhere %s between '%s' and '%s';",
		targetTable, cols, cols, stgTable, rangeColumn, startDate, endDate)
	return b.String()
}

// buildInsertSQL returns a multi-row INSERT with bind placeholders for one
// batch of rows.
func buildInsertSQL(table string, columns []string, rowCount int) string {
	rows := make([]string, rowCount)
	arg := 1
	for r := 0; r < rowCount; r++ {
		placeholders := make([]string, len(columns))
		for c := range columns {
			placeholders[c] = fmt.Sprintf("$%d", arg)
			arg++
		}
		rows[r] = "(" + strings.Join(placeholders, ",") + ")"
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		table, strings.Join(columns, ","), strings.Join(rows, ","))
}
