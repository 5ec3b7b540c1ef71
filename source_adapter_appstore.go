package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pkg/errors"

	"github.com/withObsrvr/appstore-report-pipeline/appstore"
	"github.com/withObsrvr/appstore-report-pipeline/processor"
	"github.com/withObsrvr/appstore-report-pipeline/secrets"
	"github.com/withObsrvr/appstore-report-pipeline/storage"
	"github.com/withObsrvr/appstore-report-pipeline/utils"
)

// AppStoreReportSourceAdapter fetches daily reports from the App Store
// Connect API, lands each one in the object store at
// {bucket_prefix}/{date}.csv, then reads every landed report back and emits
// them downstream as a single raw batch.
type AppStoreReportSourceAdapter struct {
	config     AppStoreReportConfig
	processors []processor.Processor

	// Populated lazily in Run; tests inject their own.
	fetcher appstore.ReportFetcher
	store   storage.ObjectStore
}

type AppStoreReportConfig struct {
	ReportType        string
	DaysToFetch       int
	DaysBehind        int
	LandingBucket     string
	BucketPrefix      string
	StorageType       string
	Region            string
	CredentialsSecret string
	PrivateKeySecret  string
	VacuumBeforeFetch bool
}

func NewAppStoreReportSourceAdapter(config map[string]interface{}) (SourceAdapter, error) {
	getIntValue := func(v interface{}) (int, bool) {
		switch i := v.(type) {
		case int:
			return i, true
		case float64:
			return int(i), true
		case int64:
			return int(i), true
		}
		return 0, false
	}

	var cfg AppStoreReportConfig

	reportType, ok := config["report_type"].(string)
	if !ok {
		return nil, errors.New("report_type must be specified")
	}
	if _, err := processor.ReportSpecFor(reportType); err != nil {
		return nil, err
	}
	cfg.ReportType = reportType

	daysToFetch, ok := getIntValue(config["days_to_fetch"])
	if !ok || daysToFetch < 0 {
		return nil, errors.New("days_to_fetch must be specified")
	}
	cfg.DaysToFetch = daysToFetch

	// Yesterday's report is usually not ready yet; stay two days back unless
	// told otherwise.
	cfg.DaysBehind = 2
	if daysBehind, ok := getIntValue(config["days_behind"]); ok {
		cfg.DaysBehind = daysBehind
	}

	landingBucket, ok := config["landing_bucket"].(string)
	if !ok {
		return nil, errors.New("landing_bucket must be specified")
	}
	cfg.LandingBucket = landingBucket

	bucketPrefix, ok := config["bucket_prefix"].(string)
	if !ok || bucketPrefix == "" {
		return nil, errors.New("bucket_prefix must be specified")
	}
	cfg.BucketPrefix = strings.Trim(bucketPrefix, "/")

	cfg.StorageType, _ = config["storage_type"].(string)
	if cfg.StorageType == "" {
		cfg.StorageType = "S3"
	}
	cfg.Region, _ = config["region"].(string)

	cfg.CredentialsSecret, _ = config["credentials_secret"].(string)
	if cfg.CredentialsSecret == "" {
		cfg.CredentialsSecret = "appstore"
	}
	cfg.PrivateKeySecret, _ = config["private_key_secret"].(string)
	if cfg.PrivateKeySecret == "" {
		cfg.PrivateKeySecret = "appstore_private_key"
	}

	cfg.VacuumBeforeFetch, _ = config["vacuum_before_fetch"].(bool)

	return &AppStoreReportSourceAdapter{config: cfg}, nil
}

func (a *AppStoreReportSourceAdapter) Subscribe(proc processor.Processor) {
	a.processors = append(a.processors, proc)
}

func (a *AppStoreReportSourceAdapter) Run(ctx context.Context) error {
	if err := a.connect(ctx); err != nil {
		return err
	}
	defer a.store.Close()

	startDate, endDate := utils.StartEndDate(a.config.DaysToFetch, a.config.DaysBehind)
	dates, err := utils.DateListBuilder(startDate, endDate)
	if err != nil {
		return err
	}
	log.Printf("AppStoreReportSourceAdapter: fetching %s reports for %s..%s (%d days)",
		a.config.ReportType, startDate, endDate, len(dates))

	if a.config.VacuumBeforeFetch {
		if err := a.store.Vacuum(ctx, a.config.BucketPrefix+"/"); err != nil {
			return err
		}
	}

	for _, date := range dates {
		data, err := a.fetchReport(ctx, date)
		if err != nil {
			return errors.Wrapf(err, "fetching %s report for %s", a.config.ReportType, date)
		}
		key := fmt.Sprintf("%s/%s.csv", a.config.BucketPrefix, date)
		uri, err := a.store.Store(ctx, key, data)
		if err != nil {
			return err
		}
		log.Printf("Stored %s", uri)
	}

	batch, err := a.readLandedReports(ctx, startDate, endDate)
	if err != nil {
		return err
	}

	msg := processor.Message{
		Payload: batch,
		Metadata: map[string]interface{}{
			"report_type": a.config.ReportType,
			"start_date":  startDate,
			"end_date":    endDate,
		},
	}
	for _, proc := range a.processors {
		if err := proc.Process(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (a *AppStoreReportSourceAdapter) connect(ctx context.Context) error {
	if a.fetcher != nil && a.store != nil {
		return nil
	}

	secretStore, err := secrets.NewSecretsManagerStore(ctx, a.config.Region)
	if err != nil {
		return errors.Wrap(err, "creating secret store")
	}
	creds, err := secretStore.GetSecretJSON(ctx, a.config.CredentialsSecret)
	if err != nil {
		return err
	}
	privateKey, err := secretStore.GetSecretString(ctx, a.config.PrivateKeySecret)
	if err != nil {
		return err
	}

	a.fetcher, err = appstore.NewClient(
		creds.Get("vendor_number").String(),
		creds.Get("key_id").String(),
		creds.Get("issuer_id").String(),
		[]byte(privateKey),
	)
	if err != nil {
		return err
	}

	a.store, err = storage.NewObjectStore(ctx, a.config.StorageType, a.config.LandingBucket, a.config.Region)
	return err
}

func (a *AppStoreReportSourceAdapter) fetchReport(ctx context.Context, date string) ([]byte, error) {
	switch a.config.ReportType {
	case processor.ReportTypeSales:
		return a.fetcher.GetSalesReport(ctx, date)
	case processor.ReportTypeSubscriptionEvents:
		return a.fetcher.GetSubscriptionEventsReport(ctx, date)
	default:
		return nil, fmt.Errorf("unsupported report type: %s", a.config.ReportType)
	}
}

// readLandedReports builds the raw batch from every report under the landing
// prefix, not only the dates fetched in this run.
func (a *AppStoreReportSourceAdapter) readLandedReports(ctx context.Context, startDate, endDate string) (processor.RawReportBatch, error) {
	batch := processor.RawReportBatch{
		ReportType: a.config.ReportType,
		StartDate:  startDate,
		EndDate:    endDate,
	}

	keys, err := a.store.ListKeys(ctx, a.config.BucketPrefix+"/")
	if err != nil {
		return batch, err
	}
	for _, key := range keys {
		if !strings.HasSuffix(key, ".csv") {
			continue
		}
		data, err := a.store.Get(ctx, key)
		if err != nil {
			return batch, err
		}
		batch.Files = append(batch.Files, processor.RawReportFile{Key: key, Data: data})
	}
	if len(batch.Files) == 0 {
		return batch, fmt.Errorf("no reports found under %s/%s/", a.config.LandingBucket, a.config.BucketPrefix)
	}

	log.Printf("AppStoreReportSourceAdapter: read back %d landed reports from %s/",
		len(batch.Files), a.config.BucketPrefix)
	return batch, nil
}
