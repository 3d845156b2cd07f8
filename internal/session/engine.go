package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/attent-app/attent/internal/activity"
	"github.com/attent-app/attent/internal/domain"
	"github.com/attent-app/attent/internal/llm"
	"github.com/attent-app/attent/internal/store"
	"github.com/attent-app/attent/internal/trigger"
)

// errDisconnected marks a failed send: the peer is gone and the session loop
// should end without treating it as a server failure.
var errDisconnected = errors.New("client disconnected")

const notificationTitle = "attent"

// Options tunes per-connection engine behavior.
type Options struct {
	// ReceiveTimeout bounds each wait for the next inbound event; on expiry
	// the engine evaluates whether a check-in is due.
	ReceiveTimeout time.Duration

	// LongSilence is how long the trigger evaluator tolerates an
	// uninterrupted on-task streak before encouraging anyway.
	LongSilence time.Duration
}

// DefaultOptions returns the production engine tuning.
func DefaultOptions() Options {
	return Options{
		ReceiveTimeout: 5 * time.Second,
		LongSilence:    trigger.DefaultLongSilence,
	}
}

// fastForwardOverride is a one-shot synthetic activity window stored by
// /fastfwd. The first check-in whose window start falls inside [start, end)
// consumes it instead of querying real history.
type fastForwardOverride struct {
	start  time.Time
	end    time.Time
	report *activity.Report
}

// Engine owns one connection's session: AWAITING_REGISTRATION until the
// first valid state event, then ACTIVE until disconnect or a fatal error.
// Everything runs on the caller's goroutine; nothing is concurrent within a
// single connection.
type Engine struct {
	repo      store.Repository
	provider  llm.Provider
	budgeter  *llm.Budgeter
	transport Transport
	opts      Options
	log       *slog.Logger

	state       *domain.AppState
	userID      int64
	evaluator   *trigger.Evaluator
	lastCheckIn time.Time
	fastFwd     *fastForwardOverride

	now func() time.Time
}

// NewEngine creates an engine for one accepted connection.
func NewEngine(repo store.Repository, provider llm.Provider, budgeter *llm.Budgeter, transport Transport, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ReceiveTimeout <= 0 {
		opts.ReceiveTimeout = DefaultOptions().ReceiveTimeout
	}
	return &Engine{
		repo:      repo,
		provider:  provider,
		budgeter:  budgeter,
		transport: transport,
		opts:      opts,
		log:       logger,
		now:       time.Now,
	}
}

// Run drives the session until disconnect, protocol violation, or an
// unrecoverable store failure. A nil return means the connection ended
// normally (including protocol closes); an error means durable persistence
// could not be guaranteed.
func (e *Engine) Run(ctx context.Context) error {
	err := e.loop(ctx)
	if errors.Is(err, errDisconnected) {
		return nil
	}
	return err
}

func (e *Engine) loop(ctx context.Context) error {
	for {
		env, err := e.transport.Receive(ctx, e.opts.ReceiveTimeout)
		switch {
		case errors.Is(err, ErrTimeout):
			if e.state == nil {
				continue
			}
			if e.now().Sub(e.lastCheckIn) > e.state.Interval() {
				if err := e.checkIn(ctx); err != nil {
					return err
				}
			}
			continue
		case errors.Is(err, ErrMalformed):
			e.log.Warn("closing connection: malformed message", "error", err)
			_ = e.transport.CloseProtocol("malformed message")
			return nil
		case err != nil:
			e.log.Info("client disconnected")
			return nil
		}

		if env.Type != TypeState {
			e.log.Warn("closing connection: unexpected message type", "type", env.Type)
			_ = e.transport.CloseProtocol("unexpected message type: " + env.Type)
			return nil
		}

		state, err := decodeState(env.Data)
		if err != nil {
			// Fatal: apply nothing, persist nothing.
			e.log.Warn("closing connection: invalid state payload", "error", err)
			_ = e.transport.CloseProtocol("invalid state payload")
			return nil
		}

		if e.state == nil {
			if err := e.register(ctx, state); err != nil {
				return err
			}
			continue
		}
		if err := e.applyState(ctx, state); err != nil {
			return err
		}
	}
}

func decodeState(data json.RawMessage) (*domain.AppState, error) {
	var state domain.AppState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("validate state: %w", err)
	}
	return &state, nil
}

// register handles the first state event: user resolution, rehydration or
// seeding, and the transition to ACTIVE. The server is authoritative: a
// persisted snapshot replaces whatever the client submitted.
func (e *Engine) register(ctx context.Context, submitted *domain.AppState) error {
	now := e.now()

	userID, err := e.repo.ResolveOrCreateUser(ctx, submitted.MachineID, submitted.Username)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}
	e.userID = userID
	e.log = e.log.With("user_id", userID)

	prior, err := e.repo.LatestSnapshot(ctx, userID)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}

	if prior != nil {
		e.state = prior
		e.log.Info("session rehydrated", "machine_id", submitted.MachineID, "messages", len(prior.Messages))
	} else {
		submitted.Seed(now)
		e.state = submitted
		if err := e.persist(ctx); err != nil {
			return err
		}
		e.log.Info("new user registered", "machine_id", submitted.MachineID, "username", submitted.Username)
	}

	e.evaluator = trigger.NewEvaluator(e.provider, e.budgeter, e.opts.LongSilence, now)
	e.lastCheckIn = now

	return e.sendState(ctx)
}

// applyState replaces the in-memory AppState wholesale, persists it, and
// dispatches on a trailing user message.
func (e *Engine) applyState(ctx context.Context, state *domain.AppState) error {
	e.state = state
	if err := e.persist(ctx); err != nil {
		return err
	}

	trailing := state.TrailingMessage()
	if trailing == nil || trailing.Role != domain.RoleUser {
		return nil
	}
	return e.dispatch(ctx, trailing.Content)
}

// checkIn runs one scheduled evaluation pass over the trailing activity
// window. Insufficient data and evaluation failures skip the pass; only
// persistence failures end the session.
func (e *Engine) checkIn(ctx context.Context) error {
	now := e.now()
	e.lastCheckIn = now
	interval := e.state.Interval()
	start := now.Add(-interval)

	report, err := e.windowReport(ctx, start, now)
	if err != nil {
		return err
	}
	if !report.HasActivity() {
		e.log.Debug("check-in skipped: insufficient activity data")
		return nil
	}

	pair, err := e.evaluator.Evaluate(ctx, e.state.Messages, report, now)
	if err != nil {
		// Completion failures abort this check-in only.
		e.log.Warn("check-in evaluation failed", "error", err)
		return nil
	}
	if pair == nil {
		return nil
	}

	e.state.Append(pair...)
	reply := pair[len(pair)-1]
	e.log.Info("check-in fired", "reply_len", len(reply.Content))

	if err := e.notify(ctx, reply.Content); err != nil {
		return err
	}
	if err := e.sendState(ctx); err != nil {
		return err
	}
	return e.persist(ctx)
}

// windowReport aggregates activity for [start, end), honoring a pending
// fast-forward override whose synthetic window contains start.
func (e *Engine) windowReport(ctx context.Context, start, end time.Time) (*activity.Report, error) {
	if ff := e.fastFwd; ff != nil && !start.Before(ff.start) && start.Before(ff.end) {
		e.fastFwd = nil
		e.log.Debug("using fast-forward activity override")
		return ff.report, nil
	}

	observed, err := e.repo.ActivityBetween(ctx, e.userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load activity window: %w", err)
	}
	return activity.Summarize(observed, start, end, e.state.Location()), nil
}

// replyCycle streams one assistant reply, growing a single message in place
// and re-sending the whole AppState after every increment so the client can
// render live.
func (e *Engine) replyCycle(ctx context.Context) error {
	prompt := llm.ForCompletion(e.state.Messages)
	if e.budgeter != nil {
		prompt = e.budgeter.Trim(prompt)
	}

	now := e.now()
	e.state.Append(domain.Message{Role: domain.RoleAssistant, Time: &now})
	idx := len(e.state.Messages) - 1

	for delta, err := range e.provider.Stream(ctx, prompt) {
		if err != nil {
			// Abort this cycle only: drop the partial reply and move on.
			e.log.Warn("reply stream failed", "error", err)
			e.state.Messages = e.state.Messages[:idx]
			return e.sendState(ctx)
		}
		e.state.Messages[idx].Merge(deltaToMessage(delta))
		if err := e.sendState(ctx); err != nil {
			return err
		}
	}

	final := &e.state.Messages[idx]
	if final.Role == "" {
		final.Role = domain.RoleAssistant
	}
	if err := e.persist(ctx); err != nil {
		return err
	}
	if final.Content != "" {
		return e.notify(ctx, final.Content)
	}
	return nil
}

func deltaToMessage(d llm.Delta) domain.Message {
	msg := domain.Message{Role: d.Role, Content: d.Content}
	if d.FunctionCall != nil {
		msg.FunctionCall = &domain.FunctionCall{
			Name:      d.FunctionCall.Name,
			Arguments: d.FunctionCall.Arguments,
		}
	}
	return msg
}

// notify emits the out-of-band notification and, when speech is enabled, the
// utterance event for an assistant message. Notifications are unconditional;
// only the utterance is gated on a setting.
func (e *Engine) notify(ctx context.Context, text string) error {
	n := Notification{Title: notificationTitle, Body: text}
	if err := e.transport.Send(ctx, TypeNotification, n); err != nil {
		e.log.Debug("notification send failed", "error", err)
		return errDisconnected
	}
	if e.state.Settings.TTS {
		if err := e.transport.Send(ctx, TypeUtterance, Utterance{Text: text}); err != nil {
			e.log.Debug("utterance send failed", "error", err)
			return errDisconnected
		}
	}
	return nil
}

func (e *Engine) sendState(ctx context.Context) error {
	if err := e.transport.Send(ctx, TypeState, e.state); err != nil {
		e.log.Debug("state send failed", "error", err)
		return errDisconnected
	}
	return nil
}

func (e *Engine) persist(ctx context.Context) error {
	if err := e.repo.AppendSnapshot(ctx, e.userID, e.state); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}
