package main

import (
	"fmt"

	"github.com/withObsrvr/appstore-report-pipeline/consumer"
	"github.com/withObsrvr/appstore-report-pipeline/internal/cli/runner"
	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

func createSourceAdapter(sourceConfig runner.SourceConfig) (runner.SourceAdapter, error) {
	switch sourceConfig.Type {
	case "AppStoreReportSourceAdapter":
		return NewAppStoreReportSourceAdapter(sourceConfig.Config)
	// Add more source types as needed
	default:
		return nil, fmt.Errorf("unsupported source type: %s", sourceConfig.Type)
	}
}

func createProcessor(processorConfig processor.ProcessorConfig) (processor.Processor, error) {
	switch processorConfig.Type {
	case "SchemaConform":
		return processor.NewSchemaConformProcessor(processorConfig.Config)
	default:
		return nil, fmt.Errorf("unsupported processor type: %s", processorConfig.Type)
	}
}

func createConsumer(consumerConfig consumer.ConsumerConfig) (processor.Processor, error) {
	switch consumerConfig.Type {
	case "RedshiftRangeReplace":
		return consumer.NewRedshiftRangeReplace(consumerConfig.Config)
	case "NotificationDispatcher":
		return consumer.NewNotificationDispatcher(consumerConfig.Config)
	default:
		return nil, fmt.Errorf("unsupported consumer type: %s", consumerConfig.Type)
	}
}
