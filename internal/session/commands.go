package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/attent-app/attent/internal/activity"
	"github.com/attent-app/attent/internal/domain"
)

// dispatch routes a trailing user message: recognized slash-commands are
// handled locally without the completion service; anything else starts a
// model-response cycle. Recognized command messages are popped from history
// so that a client re-syncing unchanged state cannot re-trigger them.
func (e *Engine) dispatch(ctx context.Context, content string) error {
	switch {
	case content == "/checkin":
		e.state.PopTrailing()
		if err := e.persistAndSend(ctx); err != nil {
			return err
		}
		return e.checkIn(ctx)

	case content == "/activity":
		e.state.PopTrailing()
		e.state.Append(domain.NewMessage(domain.RoleDebug, e.rawActivityText(), e.now()))
		return e.persistAndSend(ctx)

	case content == "/fastfwd":
		e.state.PopTrailing()
		e.storeFastForward()
		return e.persistAndSend(ctx)

	case content == "/debug":
		e.state.PopTrailing()
		e.state.Settings.Debug = !e.state.Settings.Debug
		return e.persistAndSend(ctx)

	case strings.HasPrefix(content, "/clear"):
		if handled, err := e.clearCommand(ctx, content); handled {
			return err
		}
	}

	return e.replyCycle(ctx)
}

// clearCommand handles "/clear" and "/clear n". A malformed count is not a
// command; the message falls through to the model.
func (e *Engine) clearCommand(ctx context.Context, content string) (bool, error) {
	now := e.now()

	if content == "/clear" {
		e.state.PopTrailing()
		e.state.ClearAll(now)
		return true, e.persistAndSend(ctx)
	}

	fields := strings.Fields(content)
	if len(fields) != 2 || fields[0] != "/clear" {
		return false, nil
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return false, nil
	}

	e.state.PopTrailing()
	e.state.ClearLast(n, now)
	return true, e.persistAndSend(ctx)
}

// storeFastForward fabricates an activity window: the currently reported
// snapshot, extrapolated across the full check-in interval ending now. The
// next check-in whose window start falls inside that interval consumes it.
func (e *Engine) storeFastForward() {
	now := e.now()
	interval := e.state.Interval()
	start := now.Add(-interval)

	observed := []domain.ObservedActivity{{Activity: e.state.Activity, At: start}}
	report := activity.Summarize(observed, start, now, e.state.Location())

	e.fastFwd = &fastForwardOverride{start: start, end: now, report: report}
	e.log.Debug("fast-forward override stored", "window_start", start)
}

// rawActivityText renders the client's current visible windows verbatim.
func (e *Engine) rawActivityText() string {
	windows := e.state.Activity.VisibleWindows
	if len(windows) == 0 {
		return "No visible windows reported."
	}
	var b strings.Builder
	for _, w := range windows {
		fmt.Fprintf(&b, "%s - %s\n", w.Owner, w.Title)
	}
	return b.String()
}

func (e *Engine) persistAndSend(ctx context.Context) error {
	if err := e.persist(ctx); err != nil {
		return err
	}
	return e.sendState(ctx)
}
