package processor

import (
	"fmt"
	"regexp"
	"strings"
)

// ColumnKind is the semantic type of a schema column.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInteger
	KindDecimal
	KindDate
)

func (k ColumnKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("ColumnKind(%d)", int(k))
	}
}

// ColumnType is a semantic column type; Precision/Scale apply to decimals.
type ColumnType struct {
	Kind      ColumnKind
	Precision int
	Scale     int
}

func StringType() ColumnType  { return ColumnType{Kind: KindString} }
func IntegerType() ColumnType { return ColumnType{Kind: KindInteger} }
func DateType() ColumnType    { return ColumnType{Kind: KindDate} }

func DecimalType(precision, scale int) ColumnType {
	return ColumnType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// Column pairs a canonical column name with its semantic type.
type Column struct {
	Name string
	Type ColumnType
}

// ReportSchema is an ordered list of columns. Order is significant: it
// drives generated DDL/DML column order and must agree with the warehouse
// table definitions across runs.
type ReportSchema struct {
	columns []Column
	index   map[string]int
}

func NewReportSchema(columns []Column) *ReportSchema {
	s := &ReportSchema{
		columns: columns,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := s.index[c.Name]; dup {
			panic(fmt.Sprintf("duplicate schema column %q", c.Name))
		}
		s.index[c.Name] = i
	}
	return s
}

// Columns returns the schema columns in declaration order.
func (s *ReportSchema) Columns() []Column {
	return s.columns
}

// Names returns the column names in declaration order.
func (s *ReportSchema) Names() []string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.Name
	}
	return names
}

// Lookup returns the declared type of a column.
func (s *ReportSchema) Lookup(name string) (ColumnType, bool) {
	i, ok := s.index[name]
	if !ok {
		return ColumnType{}, false
	}
	return s.columns[i].Type, true
}

func (s *ReportSchema) Len() int {
	return len(s.columns)
}

var nonAlphanumeric = regexp.MustCompile(`[^0-9a-zA-Z]+`)

// CanonicalColumnName converts an API-provided header into its canonical
// snake_case form: runs of non-alphanumeric characters collapse to a single
// separator, and leading/trailing separators are dropped, so
// "Developer Proceeds ($)" becomes "developer_proceeds".
func CanonicalColumnName(name string) string {
	spaced := nonAlphanumeric.ReplaceAllString(name, " ")
	words := strings.Fields(strings.ToLower(spaced))
	return strings.Join(words, "_")
}
