package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-logr/logr"

	"github.com/koptimizer/rigwatch/internal/config"
	"github.com/koptimizer/rigwatch/internal/state"
)

// Sink receives every published report.
type Sink interface {
	Write(ctx context.Context, r *state.Report) error
}

// ConsoleSink renders to a terminal.
type ConsoleSink struct {
	w io.Writer
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (s *ConsoleSink) Write(ctx context.Context, r *state.Report) error {
	return Render(s.w, r, Options{Color: true})
}

// FileSink appends every report to a file.
type FileSink struct {
	mu   sync.Mutex
	path string
}

func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

func (s *FileSink) Write(ctx context.Context, r *state.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening report file: %w", err)
	}
	if err := Render(f, r, Options{}); err != nil {
		f.Close()
		return fmt.Errorf("writing report file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	logr.FromContextOrDiscard(ctx).WithName("report").V(1).Info("Report appended", "path", s.path)
	return nil
}

// Sinks fans a report out to several sinks. Every sink is attempted.
type Sinks []Sink

// NewSinks builds the sinks enabled in cfg.
func NewSinks(cfg config.ReportConfig, stdout io.Writer) Sinks {
	var sinks Sinks
	if cfg.Console {
		sinks = append(sinks, NewConsoleSink(stdout))
	}
	if cfg.OutputFile != "" {
		sinks = append(sinks, NewFileSink(cfg.OutputFile))
	}
	return sinks
}

func (s Sinks) Write(ctx context.Context, r *state.Report) error {
	var errs []error
	for _, sink := range s {
		if err := sink.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
