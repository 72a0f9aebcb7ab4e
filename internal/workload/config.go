// Package workload describes the transaction workload run by the benchmark:
// its configuration, the random transaction generator, and the encoding of a
// transaction as a queue payload.
package workload

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// sentinelSize is the length of the queue's end-of-work payload.
const sentinelSize = 4

//go:embed schema.cue
var schemaSource string

// Config sizes a workload run.
type Config struct {
	Workers            int    `yaml:"workers" json:"workers"`
	Transactions       int    `yaml:"transactions" json:"transactions"`
	Tables             int    `yaml:"tables" json:"tables"`
	TableLength        int    `yaml:"table_length" json:"table_length"`
	MaxOps             int    `yaml:"max_ops" json:"max_ops"`
	HeapPerTransaction int    `yaml:"heap_per_transaction" json:"heap_per_transaction"`
	QueueCapacity      int    `yaml:"queue_capacity" json:"queue_capacity"`
	Seed               uint32 `yaml:"seed" json:"seed"`
	TableDir           string `yaml:"table_dir" json:"table_dir"`
}

// DefaultConfig returns a workload small enough to finish in about a second.
func DefaultConfig() Config {
	return Config{
		Workers:            4,
		Transactions:       100_000,
		Tables:             6,
		TableLength:        100_000,
		MaxOps:             5,
		HeapPerTransaction: 200,
	}
}

// EffectiveQueueCapacity returns the queue size the run will use: the
// configured capacity, or room for every transaction plus one sentinel per
// worker.
func (c Config) EffectiveQueueCapacity() int {
	if c.QueueCapacity > 0 {
		return c.QueueCapacity
	}
	return c.Transactions + c.Workers
}

// HeapSize returns the queue's payload heap in bytes.
func (c Config) HeapSize() int {
	return c.Transactions * c.HeapPerTransaction
}

// LoadConfig reads a YAML config file over DefaultConfig and validates it.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ValidationError describes one rejected config field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is every problem found in a config.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Field + ": " + v.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the config against the embedded schema and the sizing
// rules that span fields. It returns ValidationErrors on failure.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return schemaErrors(err)
	}

	var errs ValidationErrors
	if need := MaxPayloadSize(c); need > c.HeapSize() {
		errs = append(errs, ValidationError{
			Field:   "heap_per_transaction",
			Message: fmt.Sprintf("queue heap of %d bytes cannot hold a %d byte transaction", c.HeapSize(), need),
		})
	}
	// A single worker generates everything, sentinel included, before it
	// consumes anything.
	if need := MaxPayloadSize(c) + sentinelSize; c.Workers == 1 && need > c.HeapPerTransaction {
		errs = append(errs, ValidationError{
			Field:   "heap_per_transaction",
			Message: fmt.Sprintf("a single worker needs %d bytes per transaction", need),
		})
	}
	if c.Workers == 1 && c.QueueCapacity > 0 && c.QueueCapacity < c.Transactions+1 {
		errs = append(errs, ValidationError{
			Field:   "queue_capacity",
			Message: fmt.Sprintf("a single worker needs room for all %d transactions and its sentinel", c.Transactions),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func schemaErrors(err error) ValidationErrors {
	var errs ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		errs = append(errs, ValidationError{
			Field:   fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if len(errs) == 0 {
		errs = append(errs, ValidationError{Field: "config", Message: err.Error()})
	}
	return errs
}

// fieldPath drops schema definition labels so paths name config keys.
func fieldPath(path []string) string {
	keep := make([]string, 0, len(path))
	for _, p := range path {
		if !strings.HasPrefix(p, "#") {
			keep = append(keep, p)
		}
	}
	if len(keep) == 0 {
		return "config"
	}
	return strings.Join(keep, ".")
}
