// Package trigger decides whether a check-in should interrupt the user.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/attent-app/attent/internal/activity"
	"github.com/attent-app/attent/internal/domain"
	"github.com/attent-app/attent/internal/llm"
)

// DefaultLongSilence is how long the evaluator lets the user work without a
// single interruption before sending an encouragement anyway.
const DefaultLongSilence = 45 * time.Minute

var encouragements = []string{
	"You've been locked in for a while now. Nice work, keep the streak going!",
	"Still heads-down, I see. That focus is paying off.",
	"Great stretch of deep work. I'll keep quiet, just wanted you to know I noticed.",
	"You're on a roll today. Keep it up!",
}

const evaluationInstructions = `Above is a summary of which application windows the user had visible recently, ` +
	`along with your conversation so far. Decide whether the user has drifted away from what they said they were working on. ` +
	`First write out your reasoning. Then write a line containing exactly ` + VerdictDelimiter + ` ` +
	`and after it your message to the user. ` +
	`If the user appears on task, that message must begin with the exact words "` + AffirmationPrefix + `". ` +
	`If the user appears distracted, write a short, friendly nudge instead.`

// Evaluator issues one completion per check-in and turns the delimited
// verdict into an interrupt decision.
type Evaluator struct {
	provider llm.Provider
	budgeter *llm.Budgeter

	longSilence time.Duration
	lastFired   time.Time

	pick func(n int) int
}

// NewEvaluator creates an evaluator for one session. now anchors the
// long-silence clock so a fresh session does not fire immediately.
func NewEvaluator(provider llm.Provider, budgeter *llm.Budgeter, longSilence time.Duration, now time.Time) *Evaluator {
	if longSilence <= 0 {
		longSilence = DefaultLongSilence
	}
	return &Evaluator{
		provider:    provider,
		budgeter:    budgeter,
		longSilence: longSilence,
		lastFired:   now,
		pick:        rand.IntN,
	}
}

// Evaluate decides whether to interrupt. It returns either nil or an ordered
// pair [activity-report message, assistant reply] to append to history.
// A nil result with a nil error means "no interruption this time".
func (e *Evaluator) Evaluate(ctx context.Context, history []domain.Message, report *activity.Report, now time.Time) ([]domain.Message, error) {
	if report == nil || !report.HasActivity() {
		return nil, nil
	}

	reportMsg := domain.NewMessage(domain.RoleSystem, report.String(), now)

	prompt := llm.ForCompletion(history)
	prompt = append(prompt,
		llm.Message{Role: domain.RoleSystem, Content: reportMsg.Content},
		llm.Message{Role: domain.RoleSystem, Content: evaluationInstructions},
	)
	if e.budgeter != nil {
		prompt = e.budgeter.Trim(prompt)
	}

	resp, err := e.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("evaluate check-in: %w", err)
	}

	verdict, ok := parseVerdict(resp.Content)
	if !ok {
		// Not an error: the model ignored the delimiter convention. The
		// long-silence clock below still runs, so a streak of these cannot
		// mute the assistant indefinitely.
		slog.Debug("check-in verdict missing delimiter", "response_len", len(resp.Content))
	}

	if !ok || isAffirmation(verdict) {
		if now.Sub(e.lastFired) <= e.longSilence {
			return nil, nil
		}
		// The user has gone a long stretch without hearing anything; speak up
		// anyway so the assistant is never silent past the threshold.
		verdict = encouragements[e.pick(len(encouragements))]
	}

	e.lastFired = now
	reply := domain.NewMessage(domain.RoleAssistant, verdict, now)
	return []domain.Message{reportMsg, reply}, nil
}
