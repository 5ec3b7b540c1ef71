package consumer

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/guregu/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

func TestParseRedshiftConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]interface{}
		wantErr string
	}{
		{
			name: "valid configuration",
			config: map[string]interface{}{
				"stg_table":    "stg_sales",
				"target_table": "sales",
				"database":     "analytics",
			},
		},
		{
			name: "missing stg_table",
			config: map[string]interface{}{
				"target_table": "sales",
				"database":     "analytics",
			},
			wantErr: "stg_table must be specified",
		},
		{
			name: "missing target_table",
			config: map[string]interface{}{
				"stg_table": "stg_sales",
				"database":  "analytics",
			},
			wantErr: "target_table must be specified",
		},
		{
			name: "missing database",
			config: map[string]interface{}{
				"stg_table":    "stg_sales",
				"target_table": "sales",
			},
			wantErr: "database must be specified",
		},
		{
			name: "malicious table name",
			config: map[string]interface{}{
				"stg_table":    "stg_sales; drop table sales",
				"target_table": "sales",
				"database":     "analytics",
			},
			wantErr: "invalid SQL identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := parseRedshiftConfig(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "redshift", cfg.SecretName)
			assert.Equal(t, "require", cfg.SSLMode)
			assert.Equal(t, 500, cfg.BatchSize)
		})
	}
}

// miniSpec keeps the SQL expectations in the transaction tests readable.
func miniSpec() processor.ReportSpec {
	return processor.ReportSpec{
		Name:        processor.ReportTypeSales,
		RangeColumn: "begin_date",
		Schema: processor.NewReportSchema([]processor.Column{
			{Name: "sku", Type: processor.StringType()},
			{Name: "units", Type: processor.IntegerType()},
			{Name: "begin_date", Type: processor.DateType()},
		}),
	}
}

func conformedRows() *processor.Dataset {
	return &processor.Dataset{
		Columns: []string{"sku", "units", "begin_date"},
		Rows: [][]interface{}{
			{null.StringFrom("com.example.app"), null.IntFrom(3), null.Time{}},
			{null.StringFrom("com.example.pro"), null.IntFrom(1), null.Time{}},
		},
	}
}

func TestRedshiftRangeReplaceProcess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	spec := miniSpec()
	cfg := RedshiftRangeReplaceConfig{
		StgTable:    "stg_sales",
		TargetTable: "sales",
		Database:    "analytics",
		BatchSize:   500,
	}
	loader := newRedshiftRangeReplaceWithDB(db, cfg, spec)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(BuildPreActionsSQL("stg_sales", spec.Schema))).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(buildInsertSQL("stg_sales", spec.Schema.Names(), 2))).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(BuildPostActionsSQL("sales", "stg_sales", "begin_date", "2024-01-01", "2024-01-31", spec.Schema))).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	msg := processor.Message{Payload: processor.ConformedReport{
		ReportType: processor.ReportTypeSales,
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Dataset:    conformedRows(),
	}}
	require.NoError(t, loader.Process(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedshiftRangeReplaceBatching(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	spec := miniSpec()
	cfg := RedshiftRangeReplaceConfig{
		StgTable:    "stg_sales",
		TargetTable: "sales",
		BatchSize:   1,
	}
	loader := newRedshiftRangeReplaceWithDB(db, cfg, spec)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS stg_sales").WillReturnResult(sqlmock.NewResult(0, 0))
	// Two rows with batch size one: two staged inserts.
	mock.ExpectExec(regexp.QuoteMeta(buildInsertSQL("stg_sales", spec.Schema.Names(), 1))).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(buildInsertSQL("stg_sales", spec.Schema.Names(), 1))).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("delete from sales").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	msg := processor.Message{Payload: processor.ConformedReport{
		ReportType: processor.ReportTypeSales,
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Dataset:    conformedRows(),
	}}
	require.NoError(t, loader.Process(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedshiftRangeReplaceRollbackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	spec := miniSpec()
	loader := newRedshiftRangeReplaceWithDB(db, RedshiftRangeReplaceConfig{
		StgTable:    "stg_sales",
		TargetTable: "sales",
		BatchSize:   500,
	}, spec)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS stg_sales").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	msg := processor.Message{Payload: processor.ConformedReport{
		ReportType: processor.ReportTypeSales,
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Dataset:    conformedRows(),
	}}
	err = loader.Process(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pre-actions")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedshiftRangeReplaceRejectsBadInput(t *testing.T) {
	loader := newRedshiftRangeReplaceWithDB(nil, RedshiftRangeReplaceConfig{
		StgTable:    "stg_sales",
		TargetTable: "sales",
		BatchSize:   500,
	}, miniSpec())

	// Wrong payload type.
	err := loader.Process(context.Background(), processor.Message{Payload: "nope"})
	require.Error(t, err)

	// Wrong report type.
	err = loader.Process(context.Background(), processor.Message{Payload: processor.ConformedReport{
		ReportType: processor.ReportTypeSubscriptionEvents,
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Dataset:    conformedRows(),
	}})
	require.Error(t, err)

	// Range bounds must be ISO dates, they are embedded in SQL text.
	err = loader.Process(context.Background(), processor.Message{Payload: processor.ConformedReport{
		ReportType: processor.ReportTypeSales,
		StartDate:  "01/01/2024",
		EndDate:    "2024-01-31",
		Dataset:    conformedRows(),
	}})
	require.Error(t, err)
}

func TestRedshiftRangeReplaceForwardsLoadResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	spec := miniSpec()
	loader := newRedshiftRangeReplaceWithDB(db, RedshiftRangeReplaceConfig{
		StgTable:    "stg_sales",
		TargetTable: "sales",
		BatchSize:   500,
	}, spec)

	capture := &captureProcessor{}
	loader.Subscribe(capture)

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS stg_sales").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO stg_sales").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("delete from sales").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	msg := processor.Message{Payload: processor.ConformedReport{
		ReportType: processor.ReportTypeSales,
		StartDate:  "2024-01-01",
		EndDate:    "2024-01-31",
		Dataset:    conformedRows(),
	}}
	require.NoError(t, loader.Process(context.Background(), msg))

	require.Len(t, capture.messages, 1)
	result, ok := capture.messages[0].Payload.(processor.LoadResult)
	require.True(t, ok)
	assert.Equal(t, 2, result.RowsLoaded)
	assert.Equal(t, "sales", result.TargetTable)
	assert.Equal(t, "2024-01-01", result.StartDate)
}

type captureProcessor struct {
	messages []processor.Message
}

func (c *captureProcessor) Process(_ context.Context, msg processor.Message) error {
	c.messages = append(c.messages, msg)
	return nil
}

func (c *captureProcessor) Subscribe(processor.Processor) {}
