package processor

import (
	"context"
)

// Processor defines the interface for processing messages.
type Processor interface {
	Process(context.Context, Message) error
	Subscribe(Processor)
}

type ProcessorConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// Message encapsulates the payload to be processed with optional metadata.
type Message struct {
	Payload  interface{}            `json:"payload"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// RawReportFile is one landed report file read back from the landing bucket.
type RawReportFile struct {
	Key  string
	Data []byte
}

// RawReportBatch is the payload emitted by the App Store source adapter:
// every raw file under the landing prefix for one job run, plus the date
// range the run covers.
type RawReportBatch struct {
	ReportType string
	StartDate  string
	EndDate    string
	Files      []RawReportFile
}

// ConformedReport is the payload emitted by the schema conformance
// processor: one dataset whose columns exactly match the report schema.
type ConformedReport struct {
	ReportType string
	StartDate  string
	EndDate    string
	Dataset    *Dataset
}

// LoadResult is forwarded downstream by the warehouse consumer after a
// successful commit, for notification consumers.
type LoadResult struct {
	ReportType  string
	StartDate   string
	EndDate     string
	TargetTable string
	RowsLoaded  int
}
