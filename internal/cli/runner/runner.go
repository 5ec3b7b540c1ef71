package runner

import (
	"context"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/withObsrvr/appstore-report-pipeline/consumer"
	"github.com/withObsrvr/appstore-report-pipeline/pkg/pipeline"
	"github.com/withObsrvr/appstore-report-pipeline/processor"
)

type Options struct {
	ConfigFile string
	Verbose    bool
}

// Factories are the component constructors, injected by the main package so
// this package stays free of storage and warehouse imports.
type Factories struct {
	CreateSourceAdapter func(SourceConfig) (SourceAdapter, error)
	CreateProcessor     func(processor.ProcessorConfig) (processor.Processor, error)
	CreateConsumer      func(consumer.ConsumerConfig) (processor.Processor, error)
}

type Runner struct {
	opts      Options
	factories Factories
}

type Config struct {
	Pipelines map[string]PipelineConfig `yaml:"pipelines"`
}

type PipelineConfig struct {
	Name       string                      `yaml:"name"`
	Source     SourceConfig                `yaml:"source"`
	Processors []processor.ProcessorConfig `yaml:"processors"`
	Consumers  []consumer.ConsumerConfig   `yaml:"consumers"`
}

type SourceConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

type SourceAdapter interface {
	Run(context.Context) error
	Subscribe(processor.Processor)
}

func New(opts Options, factories Factories) *Runner {
	return &Runner{
		opts:      opts,
		factories: factories,
	}
}

func (r *Runner) loadConfig() (Config, error) {
	var config Config

	configBytes, err := os.ReadFile(r.opts.ConfigFile)
	if err != nil {
		return config, fmt.Errorf("error reading config file %s: %w", r.opts.ConfigFile, err)
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("error parsing config: %w", err)
	}
	if len(config.Pipelines) == 0 {
		return config, fmt.Errorf("config defines no pipelines")
	}
	return config, nil
}

// Validate parses the configuration and checks each pipeline's shape without
// constructing components, so a dry run never dials the API, the object
// store, or the warehouse.
func (r *Runner) Validate() error {
	config, err := r.loadConfig()
	if err != nil {
		return err
	}

	for name, pipelineConfig := range config.Pipelines {
		if pipelineConfig.Source.Type == "" {
			return fmt.Errorf("pipeline %s: source type must be specified", name)
		}
		for i, procConfig := range pipelineConfig.Processors {
			if procConfig.Type == "" {
				return fmt.Errorf("pipeline %s: processor %d has no type", name, i)
			}
		}
		for i, consConfig := range pipelineConfig.Consumers {
			if consConfig.Type == "" {
				return fmt.Errorf("pipeline %s: consumer %d has no type", name, i)
			}
		}
		if r.opts.Verbose {
			log.Printf("Pipeline %s: source %s, %d processors, %d consumers",
				name, pipelineConfig.Source.Type,
				len(pipelineConfig.Processors), len(pipelineConfig.Consumers))
		}
	}
	return nil
}

// Run executes every pipeline in the configuration. A failed load is fatal
// for its pipeline; the next scheduled run re-fetches and re-replaces the
// same range, so nothing is retried here.
func (r *Runner) Run(ctx context.Context) error {
	config, err := r.loadConfig()
	if err != nil {
		return err
	}

	for name, pipelineConfig := range config.Pipelines {
		log.Printf("Starting pipeline: %s", name)
		if err := r.setupPipeline(ctx, pipelineConfig); err != nil {
			return fmt.Errorf("error in pipeline %s: %w", name, err)
		}
		log.Printf("Pipeline %s finished.", name)
	}

	log.Printf("All pipelines finished.")
	return nil
}

func (r *Runner) setupPipeline(ctx context.Context, pipelineConfig PipelineConfig) error {
	source, err := r.factories.CreateSourceAdapter(pipelineConfig.Source)
	if err != nil {
		return fmt.Errorf("error creating source: %w", err)
	}

	processors := make([]processor.Processor, len(pipelineConfig.Processors))
	for i, procConfig := range pipelineConfig.Processors {
		proc, err := r.factories.CreateProcessor(procConfig)
		if err != nil {
			return fmt.Errorf("error creating processor %s: %w", procConfig.Type, err)
		}
		processors[i] = proc
	}

	consumers := make([]processor.Processor, len(pipelineConfig.Consumers))
	for i, consConfig := range pipelineConfig.Consumers {
		cons, err := r.factories.CreateConsumer(consConfig)
		if err != nil {
			return fmt.Errorf("error creating consumer %s: %w", consConfig.Type, err)
		}
		consumers[i] = cons
	}

	pipeline.BuildProcessorChain(processors, consumers)

	if len(processors) > 0 {
		source.Subscribe(processors[0])
	} else if len(consumers) > 0 {
		source.Subscribe(consumers[0])
	}

	err = source.Run(ctx)

	for _, cons := range consumers {
		if closer, ok := cons.(interface{ Close() error }); ok {
			if closeErr := closer.Close(); closeErr != nil {
				log.Printf("Error closing consumer %T: %v", cons, closeErr)
			}
		}
	}

	return err
}
