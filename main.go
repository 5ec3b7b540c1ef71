package main

import (
	"context"
	"log"
	"os"

	"github.com/withObsrvr/appstore-report-pipeline/internal/cli/cmd"
	"github.com/withObsrvr/appstore-report-pipeline/internal/cli/runner"
	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

// Version information, injected at build time via -ldflags
var (
	version   string
	gitCommit string
	buildDate string
)

type SourceAdapter interface {
	Run(context.Context) error
	Subscribe(processor.Processor)
}

func main() {
	cmd.SetVersionInfo(version, gitCommit, buildDate)
	cmd.SetFactories(runner.Factories{
		CreateSourceAdapter: createSourceAdapter,
		CreateProcessor:     createProcessor,
		CreateConsumer:      createConsumer,
	})

	if err := cmd.Execute(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
