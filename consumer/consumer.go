package consumer

import (
	"context"

	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

// Consumer is the terminal end of a pipeline: it receives messages and
// persists or dispatches them.
type Consumer interface {
	Process(context.Context, processor.Message) error
	Subscribe(processor.Processor)
}

type ConsumerConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}
