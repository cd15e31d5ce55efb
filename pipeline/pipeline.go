// Package pipeline runs the full load, denormalize and write sequence and
// reports progress per stage.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/marquee/codec"
	"github.com/jacentio/marquee/denorm"
	"github.com/jacentio/marquee/source"
	"github.com/jacentio/marquee/store"
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages, in execution order.
const (
	StageLoad        Stage = "load"
	StageDenormalize Stage = "denormalize"
	StageDedupe      Stage = "dedupe"
	StageBatch       Stage = "batch"
	StageWrite       Stage = "write"
	StageExport      Stage = "export"
)

// ErrNoWriter is returned by Run when the pipeline was built without a writer.
var ErrNoWriter = errors.New("marquee: no writer configured")

// StageError reports which stage stopped the run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("marquee: %s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Writer is the write side used by the pipeline. *store.Store satisfies it.
type Writer interface {
	WriteAll(ctx context.Context, docs []codec.Map) (store.WriteResult, error)
}

// Result summarizes a completed run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Loaded is the number of records per collection.
	Loaded map[string]int

	// Denormalized counts the documents built and the defaults taken.
	Denormalized denorm.Report

	// Written summarizes the batch write. Zero for an export.
	Written store.WriteResult

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Pipeline wires a loader to a writer.
type Pipeline struct {
	loader *source.Loader
	writer Writer
	logger *slog.Logger
}

// New creates a Pipeline. writer may be nil when only Export is used.
// A nil logger uses slog.Default().
func New(loader *source.Loader, writer Writer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader: loader,
		writer: writer,
		logger: logger,
	}
}

// Run loads every collection, denormalizes the titles and writes the
// documents. Nothing is written when loading fails.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	docs, res, log, err := p.build()
	if err != nil {
		return res, err
	}

	if p.writer == nil {
		return res, &StageError{Stage: StageWrite, Err: ErrNoWriter}
	}
	w, err := p.writer.WriteAll(ctx, denorm.Items(docs))
	res.Written = w
	if err != nil {
		log.Error("stage failed", "stage", StageWrite, "written", w.Written, "error", err)
		return res, &StageError{Stage: StageWrite, Err: err}
	}
	log.Info("stage complete", "stage", StageDedupe, "duplicates", w.Duplicates, "skipped", w.Skipped)
	log.Info("stage complete", "stage", StageBatch, "batches", w.Batches)
	log.Info("stage complete", "stage", StageWrite, "written", w.Written, "retries", w.Retries)

	res.Elapsed = time.Since(start)
	log.Info("run complete", "written", w.Written, "elapsed", res.Elapsed)
	return res, nil
}

// Export loads and denormalizes like Run but writes the documents to w as a
// batch-write file for table instead of to the store.
func (p *Pipeline) Export(w io.Writer, table string) (Result, error) {
	start := time.Now()
	docs, res, log, err := p.build()
	if err != nil {
		return res, err
	}

	if err := denorm.WriteExport(w, table, denorm.Items(docs)); err != nil {
		log.Error("stage failed", "stage", StageExport, "error", err)
		return res, &StageError{Stage: StageExport, Err: err}
	}
	res.Elapsed = time.Since(start)
	log.Info("stage complete", "stage", StageExport, "table", table, "documents", len(docs), "elapsed", res.Elapsed)
	return res, nil
}

// build runs the load and denormalize stages under a fresh run id.
func (p *Pipeline) build() ([]denorm.Document, Result, *slog.Logger, error) {
	res := Result{RunID: uuid.NewString()}
	log := p.logger.With("runID", res.RunID)

	data, err := p.loader.LoadAll()
	if err != nil {
		log.Error("stage failed", "stage", StageLoad, "error", err)
		return nil, res, log, &StageError{Stage: StageLoad, Err: err}
	}
	res.Loaded = data.Counts()
	log.Info("stage complete", "stage", StageLoad, "records", res.Loaded)

	docs, report := denorm.Denormalize(data.Titles, denorm.BuildIndexes(data, p.loader.Registry()))
	res.Denormalized = report
	log.Info("stage complete", "stage", StageDenormalize, "report", report)

	return docs, res, log, nil
}
