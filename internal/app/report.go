package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tereo-quiz-service/internal/domain"
)

// MistakeReporter receives the missed items of a finished session (local log, remote collector).
type MistakeReporter interface {
	ReportMistakes(ctx context.Context, report domain.MistakeReport) error
}

// MultiReporter fans one report out to every reporter concurrently and returns the first error.
// A failing reporter does not cancel the others.
type MultiReporter []MistakeReporter

func (m MultiReporter) ReportMistakes(ctx context.Context, report domain.MistakeReport) error {
	var g errgroup.Group
	for _, r := range m {
		r := r
		g.Go(func() error {
			return r.ReportMistakes(ctx, report)
		})
	}
	return g.Wait()
}

// Completion is the finalised result of a session plus its in-flight mistake report.
// Result never changes after construction, whatever the report outcome.
type Completion struct {
	Result domain.Result

	done chan struct{}
	err  error
}

// Done is closed once the report has settled.
func (c *Completion) Done() <-chan struct{} { return c.done }

// Err returns the report error; only meaningful after Done is closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the report settles or ctx ends.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startReport sends the result's missed IDs to reporter in the background.
// A nil reporter yields an already-settled completion.
func startReport(reporter MistakeReporter, result domain.Result, timeout time.Duration, logger *zap.Logger) *Completion {
	c := &Completion{Result: result, done: make(chan struct{})}
	if reporter == nil {
		close(c.done)
		return c
	}

	report := domain.MistakeReport{
		UserID:    result.UserID,
		MissedIDs: append([]string{}, result.MissedIDs...),
	}
	go func() {
		defer close(c.done)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := reporter.ReportMistakes(ctx, report); err != nil {
			c.err = err
			logger.Warn("mistake report failed",
				zap.String("session_id", result.SessionID),
				zap.String("user_id", result.UserID),
				zap.Error(err),
			)
			return
		}
		logger.Info("mistakes reported",
			zap.String("session_id", result.SessionID),
			zap.Int("missed", len(report.MissedIDs)),
		)
	}()
	return c
}
