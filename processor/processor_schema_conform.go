package processor

import (
	"context"
	"fmt"
	"log"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownColumn is returned when a report contains a column that is not
// part of the target schema. The job must abort rather than silently drop
// unexpected data.
var ErrUnknownColumn = errors.New("column not in expected schema")

// SchemaConformProcessor transforms a RawReportBatch into a ConformedReport:
// one dataset whose columns exactly match the report schema, in schema order,
// with every value typed per the schema or null.
type SchemaConformProcessor struct {
	spec       ReportSpec
	processors []Processor
}

func NewSchemaConformProcessor(config map[string]interface{}) (*SchemaConformProcessor, error) {
	reportType, ok := config["report_type"].(string)
	if !ok {
		return nil, errors.New("report_type must be specified")
	}
	spec, err := ReportSpecFor(reportType)
	if err != nil {
		return nil, err
	}
	return &SchemaConformProcessor{spec: spec}, nil
}

func (p *SchemaConformProcessor) Subscribe(processor Processor) {
	p.processors = append(p.processors, processor)
}

func (p *SchemaConformProcessor) Process(ctx context.Context, msg Message) error {
	batch, ok := msg.Payload.(RawReportBatch)
	if !ok {
		return fmt.Errorf("expected RawReportBatch payload, got %T", msg.Payload)
	}
	if len(batch.Files) == 0 {
		return fmt.Errorf("no raw report files in batch for %s", p.spec.Name)
	}

	var merged *Dataset
	for _, file := range batch.Files {
		ds, err := p.conformFile(file)
		if err != nil {
			return errors.Wrapf(err, "conforming %s", file.Key)
		}
		if merged == nil {
			merged = ds
			continue
		}
		if err := merged.Append(ds); err != nil {
			return errors.Wrapf(err, "merging %s", file.Key)
		}
	}
	log.Printf("SchemaConformProcessor: conformed %d rows from %d files for %s",
		len(merged.Rows), len(batch.Files), p.spec.Name)

	conformed := Message{
		Payload: ConformedReport{
			ReportType: batch.ReportType,
			StartDate:  batch.StartDate,
			EndDate:    batch.EndDate,
			Dataset:    merged,
		},
		Metadata: msg.Metadata,
	}
	for _, proc := range p.processors {
		if err := proc.Process(ctx, conformed); err != nil {
			return err
		}
	}
	return nil
}

func (p *SchemaConformProcessor) conformFile(file RawReportFile) (*Dataset, error) {
	ds, err := ParseTabDelimited(file.Data)
	if err != nil {
		return nil, err
	}

	// The fetch day lives in the object key, not in the row content.
	if col := p.spec.DerivedDateColumn; col != "" && !ds.HasColumn(col) {
		ds.AddColumn(col, dateFromKey(file.Key))
	}

	return ConformDataset(ds, p.spec)
}

// dateFromKey extracts the fetch date embedded in an object key of the form
// {prefix}/{date}.csv.
func dateFromKey(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}

// ConformDataset applies the full conformance pipeline for one report spec:
// header remap, column-name canonicalization, strict unknown-column check,
// date reparsing, type coercion, missing-column fill, null defaults, and an
// explicit reorder into schema column order. It is idempotent: conforming an
// already-conformed dataset yields an identical dataset.
func ConformDataset(ds *Dataset, spec ReportSpec) (*Dataset, error) {
	for from, to := range spec.HeaderRemap {
		ds.RenameColumn(from, to)
	}
	for i, col := range ds.Columns {
		ds.Columns[i] = CanonicalColumnName(col)
	}

	for _, col := range ds.Columns {
		if _, ok := spec.Schema.Lookup(col); !ok {
			return nil, errors.Wrap(ErrUnknownColumn, col)
		}
	}

	if err := reparseRawDates(ds, spec.Schema); err != nil {
		return nil, err
	}
	if err := castColumns(ds, spec.Schema); err != nil {
		return nil, err
	}

	for _, col := range spec.Schema.Columns() {
		if !ds.HasColumn(col.Name) {
			ds.AddColumn(col.Name, typedNull(col.Type))
			log.Printf("Added %s column.", col.Name)
		}
	}

	applyNullDefaults(ds, spec.NullDefaults)

	if err := ds.Reorder(spec.Schema.Names()); err != nil {
		return nil, err
	}
	return ds, nil
}

// reparseRawDates converts MM/dd/yyyy strings in date columns into date
// values before the generic cast, which only accepts ISO dates.
func reparseRawDates(ds *Dataset, schema *ReportSchema) error {
	for i, col := range ds.Columns {
		colType, ok := schema.Lookup(col)
		if !ok || colType.Kind != KindDate {
			continue
		}
		for r, row := range ds.Rows {
			s, isString := row[i].(string)
			if !isString || !strings.Contains(s, "/") {
				continue
			}
			t, err := time.Parse(RawDateLayout, s)
			if err != nil {
				return fmt.Errorf("cannot parse %s value %q as %s date: %w", col, s, RawDateLayout, err)
			}
			ds.Rows[r][i] = null.TimeFrom(t)
		}
	}
	return nil
}

// castColumns coerces every present column to its declared schema type,
// logging each column that actually needed conversion.
func castColumns(ds *Dataset, schema *ReportSchema) error {
	for i, col := range ds.Columns {
		colType, _ := schema.Lookup(col)
		converted := false
		for r, row := range ds.Rows {
			value, didConvert, err := castValue(row[i], colType)
			if err != nil {
				return fmt.Errorf("casting column %s: %w", col, err)
			}
			ds.Rows[r][i] = value
			converted = converted || didConvert
		}
		if converted {
			log.Printf("Converted %s to %s", col, colType.Kind)
		}
	}
	return nil
}

// castValue maps one cell to its declared type. Raw string values are
// parsed; already-typed values pass through unchanged, which keeps the
// conformance pipeline idempotent.
func castValue(v interface{}, t ColumnType) (interface{}, bool, error) {
	if v == nil {
		return typedNull(t), false, nil
	}

	switch typed := v.(type) {
	case null.String:
		if t.Kind == KindString {
			return typed, false, nil
		}
	case null.Int:
		if t.Kind == KindInteger {
			return typed, false, nil
		}
	case decimal.NullDecimal:
		if t.Kind == KindDecimal {
			return typed, false, nil
		}
	case null.Time:
		if t.Kind == KindDate {
			return typed, false, nil
		}
	case string:
		if typed == "" {
			return typedNull(t), false, nil
		}
		switch t.Kind {
		case KindString:
			return null.StringFrom(typed), true, nil
		case KindInteger:
			n, err := strconv.ParseInt(typed, 10, 64)
			if err != nil {
				return nil, false, fmt.Errorf("value %q is not an integer", typed)
			}
			return null.IntFrom(n), true, nil
		case KindDecimal:
			// Monetary values stay exact: parsed into fixed-point decimals,
			// never through a binary float.
			d, err := decimal.NewFromString(typed)
			if err != nil {
				return nil, false, fmt.Errorf("value %q is not a decimal", typed)
			}
			return decimal.NullDecimal{Decimal: d, Valid: true}, true, nil
		case KindDate:
			d, err := time.Parse("2006-01-02", typed)
			if err != nil {
				return nil, false, fmt.Errorf("value %q is not a date", typed)
			}
			return null.TimeFrom(d), true, nil
		}
	}
	return nil, false, fmt.Errorf("unsupported value %v (%T) for %s column", v, v, t.Kind)
}

// typedNull returns the null value of the declared type.
func typedNull(t ColumnType) interface{} {
	switch t.Kind {
	case KindInteger:
		return null.Int{}
	case KindDecimal:
		return decimal.NullDecimal{}
	case KindDate:
		return null.Time{}
	default:
		return null.String{}
	}
}

// applyNullDefaults replaces null values with the report's literal defaults.
func applyNullDefaults(ds *Dataset, defaults map[string]string) {
	for col, def := range defaults {
		i := ds.ColumnIndex(col)
		if i < 0 {
			continue
		}
		for r, row := range ds.Rows {
			switch cell := row[i].(type) {
			case nil:
				ds.Rows[r][i] = null.StringFrom(def)
			case null.String:
				if !cell.Valid {
					ds.Rows[r][i] = null.StringFrom(def)
				}
			}
		}
	}
}
