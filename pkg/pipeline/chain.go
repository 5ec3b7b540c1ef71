package pipeline

import (
	"log"

	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

// BuildProcessorChain chains processors sequentially, subscribes the first
// consumer to the last processor, and chains the remaining consumers one
// after another. Downstream consumers only see messages their predecessor
// forwards, so a notifier placed after the warehouse loader reports on
// committed loads only.
func BuildProcessorChain(processors []processor.Processor, consumers []processor.Processor) {
	var last processor.Processor

	for _, p := range processors {
		if last != nil {
			last.Subscribe(p)
			log.Printf("Chained processor %T -> %T", last, p)
		}
		last = p
	}

	for _, c := range consumers {
		if last != nil {
			last.Subscribe(c)
			log.Printf("Chained %T -> consumer %T", last, c)
		}
		last = c
	}
}
