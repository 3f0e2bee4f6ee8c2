package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tereo-quiz-service/internal/app"
	"tereo-quiz-service/internal/config"
	"tereo-quiz-service/internal/domain"
	"tereo-quiz-service/internal/logging"
)

// NewPlayCmd runs one quiz session in the terminal.
func NewPlayCmd(configPath *string) *cobra.Command {
	var userID string
	var limit int
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play a quiz session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			// keep log lines out of the game output unless asked for
			level := cfg.Log.Level
			if level == "" {
				level = "warn"
			}
			logger, err := logging.New(level, cfg.Log.Development)
			if err != nil {
				return err
			}
			defer logger.Sync()

			d, err := buildDeps(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer d.Close()

			_, err = playSession(cmd.Context(), d.service, userID, limit, os.Stdin, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", app.AnonymousUser, "player id")
	cmd.Flags().IntVar(&limit, "limit", 0, "number of questions (0 uses the configured default)")
	return cmd
}

// playSession drives a session from line input until it finishes or input ends.
func playSession(ctx context.Context, service *app.QuizService, userID string, limit int, in io.Reader, out io.Writer) (domain.Result, error) {
	session, err := service.StartSession(ctx, userID, limit)
	if err != nil {
		return domain.Result{}, err
	}
	sessionID := session.ID()
	defer service.End(sessionID)

	updates, unsubscribe, err := service.Subscribe(ctx, sessionID)
	if err != nil {
		return domain.Result{}, err
	}
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-session.Done():
				return
			}
		}
	}()

	r := &renderer{out: out}
	for {
		select {
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return domain.Result{}, domain.ErrSessionClosed
			}
			r.render(snap)
			if snap.Phase == domain.PhaseFinished {
				return finishPlay(ctx, service, sessionID, out)
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				snap, err := service.Snapshot(ctx, sessionID)
				if err != nil {
					return domain.Result{}, err
				}
				if snap.Phase != domain.PhaseFinished {
					fmt.Fprintln(out, "\nQuiz abandoned.")
					return domain.Result{}, nil
				}
				continue
			}
			if err := handleLine(ctx, service, sessionID, line, out); err != nil {
				return domain.Result{}, err
			}
		}
	}
}

func handleLine(ctx context.Context, service *app.QuizService, sessionID, line string, out io.Writer) error {
	snap, err := service.Snapshot(ctx, sessionID)
	if err != nil {
		return err
	}
	switch snap.Phase {
	case domain.PhaseActive:
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(snap.Options) {
			fmt.Fprintf(out, "Pick a number between 1 and %d.\n", len(snap.Options))
			return nil
		}
		_, _, err = service.Select(ctx, sessionID, snap.Options[n-1])
		return err
	case domain.PhaseFeedback:
		_, _, err := service.Advance(ctx, sessionID)
		return err
	}
	return nil
}

func finishPlay(ctx context.Context, service *app.QuizService, sessionID string, out io.Writer) (domain.Result, error) {
	result, err := service.AwaitReport(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(out, "Could not save your mistakes: %v\n", err)
	}
	return result, nil
}

// renderer prints a snapshot only when it changes what the player sees.
type renderer struct {
	out   io.Writer
	index int
	phase domain.Phase
}

func (r *renderer) render(snap domain.Snapshot) {
	changed := snap.Phase != r.phase || snap.Index != r.index
	r.phase, r.index = snap.Phase, snap.Index

	switch snap.Phase {
	case domain.PhaseActive:
		if !changed {
			fmt.Fprintf(r.out, "\r  %2ds left ", snap.SecondsRemaining)
			return
		}
		review := ""
		if snap.IsReview {
			review = " (review)"
		}
		fmt.Fprintf(r.out, "\nQuestion %d/%d%s: what does %q mean?\n", snap.Index+1, snap.Total, review, snap.Prompt)
		for i, option := range snap.Options {
			fmt.Fprintf(r.out, "  %d) %s\n", i+1, option)
		}
		fmt.Fprintf(r.out, "  %2ds left ", snap.SecondsRemaining)
	case domain.PhaseFeedback:
		if changed && snap.Feedback != nil {
			fmt.Fprintf(r.out, "\n%s\nPress Enter to continue.\n", snap.Feedback.Message)
		}
	case domain.PhaseFinished:
		if changed {
			result := domain.Result{Score: snap.Score, Total: snap.Total}
			fmt.Fprintf(r.out, "\nQuiz finished! Score: %d/%d, error rate: %.0f%%\n", snap.Score, snap.Total, result.ErrorRate())
		}
	}
}
