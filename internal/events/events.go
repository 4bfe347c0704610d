// Package events carries the pipeline's audit stream: one event per
// normalization, validation, lookup and evaluation decision, delivered to an
// injected observer instead of a global logger.
package events

import (
	"io"
	"log"
)

type Stage string

const (
	StageDetect    Stage = "detect"
	StageExtract   Stage = "extract"
	StageNormalize Stage = "normalize"
	StageValidate  Stage = "validate"
	StageLookup    Stage = "lookup"
	StageEvaluate  Stage = "evaluate"
)

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event records one pipeline decision. ItemIndex is -1 for batch-level
// events; Field is empty when the event is not tied to a single field.
type Event struct {
	Stage     Stage
	Level     Level
	ItemIndex int
	Field     string
	Message   string
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Discard drops every event. Useful in tests.
var Discard Observer = ObserverFunc(func(Event) {})

type logObserver struct {
	logger *log.Logger
}

// NewLogObserver renders events line by line through the stdlib logger.
func NewLogObserver(w io.Writer) Observer {
	return &logObserver{logger: log.New(w, "", log.LstdFlags)}
}

func (o *logObserver) Observe(e Event) {
	if e.ItemIndex >= 0 && e.Field != "" {
		o.logger.Printf("[%s] %s item=%d field=%s: %s", e.Stage, e.Level, e.ItemIndex, e.Field, e.Message)
		return
	}
	if e.ItemIndex >= 0 {
		o.logger.Printf("[%s] %s item=%d: %s", e.Stage, e.Level, e.ItemIndex, e.Message)
		return
	}
	o.logger.Printf("[%s] %s: %s", e.Stage, e.Level, e.Message)
}
