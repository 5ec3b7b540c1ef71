package consumer

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/withObsrvr/appstore-report-pipeline/processor"
	"github.com/withObsrvr/appstore-report-pipeline/secrets"
	"github.com/withObsrvr/appstore-report-pipeline/utils"
)

// RedshiftRangeReplace loads a conformed report into the warehouse with a
// transactional range replace: create-if-needed and truncate the staging
// table, bulk-insert the dataset into it, then delete the target rows in the
// report's date range and reinsert them from staging. Everything runs in one
// transaction, so a rerun for the same range never duplicates rows.
type RedshiftRangeReplace struct {
	db         *sql.DB
	spec       processor.ReportSpec
	config     RedshiftRangeReplaceConfig
	processors []processor.Processor
}

type RedshiftRangeReplaceConfig struct {
	StgTable    string
	TargetTable string
	Database    string
	SecretName  string
	Region      string
	SSLMode     string
	BatchSize   int
}

func NewRedshiftRangeReplace(config map[string]interface{}) (*RedshiftRangeReplace, error) {
	cfg, err := parseRedshiftConfig(config)
	if err != nil {
		return nil, err
	}

	reportType, ok := config["report_type"].(string)
	if !ok {
		return nil, errors.New("report_type must be specified")
	}
	spec, err := processor.ReportSpecFor(reportType)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	store, err := secrets.NewSecretsManagerStore(ctx, cfg.Region)
	if err != nil {
		return nil, errors.Wrap(err, "creating secret store")
	}
	creds, err := store.GetSecretJSON(ctx, cfg.SecretName)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching warehouse credentials %s", cfg.SecretName)
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		creds.Get("host").String(), creds.Get("port").Int(),
		creds.Get("username").String(), creds.Get("password").String(),
		cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to warehouse: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error pinging warehouse: %w", err)
	}

	return newRedshiftRangeReplaceWithDB(db, cfg, spec), nil
}

// newRedshiftRangeReplaceWithDB wires a loader onto an existing connection.
func newRedshiftRangeReplaceWithDB(db *sql.DB, cfg RedshiftRangeReplaceConfig, spec processor.ReportSpec) *RedshiftRangeReplace {
	return &RedshiftRangeReplace{
		db:     db,
		spec:   spec,
		config: cfg,
	}
}

func parseRedshiftConfig(config map[string]interface{}) (RedshiftRangeReplaceConfig, error) {
	var cfg RedshiftRangeReplaceConfig

	stgTable, ok := config["stg_table"].(string)
	if !ok {
		return cfg, errors.New("stg_table must be specified")
	}
	cfg.StgTable = stgTable

	targetTable, ok := config["target_table"].(string)
	if !ok {
		return cfg, errors.New("target_table must be specified")
	}
	cfg.TargetTable = targetTable

	database, ok := config["database"].(string)
	if !ok {
		return cfg, errors.New("database must be specified")
	}
	cfg.Database = database

	// Identifiers are formatted into SQL text; check them here, at the
	// configuration boundary.
	for _, name := range []string{cfg.StgTable, cfg.TargetTable} {
		if err := ValidateIdentifier(name); err != nil {
			return cfg, err
		}
	}

	cfg.SecretName, _ = config["secret_name"].(string)
	if cfg.SecretName == "" {
		cfg.SecretName = "redshift"
	}
	cfg.Region, _ = config["region"].(string)
	cfg.SSLMode, _ = config["ssl_mode"].(string)
	if cfg.SSLMode == "" {
		cfg.SSLMode = "require"
	}

	cfg.BatchSize = 500
	if batchSize, ok := config["batch_size"].(int); ok && batchSize > 0 {
		cfg.BatchSize = batchSize
	}

	return cfg, nil
}

func (c *RedshiftRangeReplace) Subscribe(proc processor.Processor) {
	c.processors = append(c.processors, proc)
}

func (c *RedshiftRangeReplace) Process(ctx context.Context, msg processor.Message) error {
	report, ok := msg.Payload.(processor.ConformedReport)
	if !ok {
		return fmt.Errorf("expected ConformedReport payload, got %T", msg.Payload)
	}
	if report.ReportType != c.spec.Name {
		return fmt.Errorf("consumer is configured for %s reports, got %s", c.spec.Name, report.ReportType)
	}

	// The range bounds end up inside SQL text; only dates produced by the
	// date utilities are acceptable.
	for _, d := range []string{report.StartDate, report.EndDate} {
		if _, err := time.Parse(utils.DateFormat, d); err != nil {
			return fmt.Errorf("invalid range bound %q: %w", d, err)
		}
	}

	ds := report.Dataset
	if got, want := len(ds.Columns), c.spec.Schema.Len(); got != want {
		return fmt.Errorf("dataset has %d columns, schema expects %d", got, want)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback() // ignored once committed

	preActions := BuildPreActionsSQL(c.config.StgTable, c.spec.Schema)
	if _, err := tx.ExecContext(ctx, preActions); err != nil {
		return fmt.Errorf("error executing pre-actions: %w", err)
	}

	if err := c.stageLoad(ctx, tx, ds); err != nil {
		return err
	}

	postActions := BuildPostActionsSQL(
		c.config.TargetTable, c.config.StgTable, c.spec.RangeColumn,
		report.StartDate, report.EndDate, c.spec.Schema,
	)
	if _, err := tx.ExecContext(ctx, postActions); err != nil {
		return fmt.Errorf("error executing post-actions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing load: %w", err)
	}
	log.Printf("RedshiftRangeReplace: replaced %s rows %s..%s in %s (%d rows)",
		report.ReportType, report.StartDate, report.EndDate, c.config.TargetTable, len(ds.Rows))

	result := processor.Message{
		Payload: processor.LoadResult{
			ReportType:  report.ReportType,
			StartDate:   report.StartDate,
			EndDate:     report.EndDate,
			TargetTable: c.config.TargetTable,
			RowsLoaded:  len(ds.Rows),
		},
		Metadata: msg.Metadata,
	}
	for _, proc := range c.processors {
		if err := proc.Process(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// stageLoad bulk-writes the dataset into the freshly truncated staging table
// with batched multi-row inserts, inside the surrounding transaction.
func (c *RedshiftRangeReplace) stageLoad(ctx context.Context, tx *sql.Tx, ds *processor.Dataset) error {
	columns := c.spec.Schema.Names()

	for offset := 0; offset < len(ds.Rows); offset += c.config.BatchSize {
		end := offset + c.config.BatchSize
		if end > len(ds.Rows) {
			end = len(ds.Rows)
		}
		batch := ds.Rows[offset:end]

		args := make([]interface{}, 0, len(batch)*len(columns))
		for _, row := range batch {
			args = append(args, row...)
		}

		stmt := buildInsertSQL(c.config.StgTable, columns, len(batch))
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("error staging batch at row %d: %w", offset, err)
		}
	}
	return nil
}

func (c *RedshiftRangeReplace) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}
