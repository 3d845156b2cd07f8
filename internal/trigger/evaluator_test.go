package trigger

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/attent-app/attent/internal/activity"
	"github.com/attent-app/attent/internal/domain"
	"github.com/attent-app/attent/internal/llm"
)

type fakeProvider struct {
	response string
	err      error
	calls    int
	prompts  [][]llm.Message
}

func (f *fakeProvider) Complete(ctx context.Context, messages []llm.Message) (*llm.Message, error) {
	f.calls++
	f.prompts = append(f.prompts, messages)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Message{Role: "assistant", Content: f.response}, nil
}

func (f *fakeProvider) Stream(ctx context.Context, messages []llm.Message) iter.Seq2[llm.Delta, error] {
	return func(yield func(llm.Delta, error) bool) {
		msg, err := f.Complete(ctx, messages)
		if err != nil {
			yield(llm.Delta{}, err)
			return
		}
		yield(llm.Delta{Role: msg.Role, Content: msg.Content}, nil)
	}
}

func testReport(t *testing.T) *activity.Report {
	t.Helper()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(10 * time.Minute)
	observed := []domain.ObservedActivity{{
		Activity: domain.Activity{VisibleWindows: []domain.Window{{Owner: "Chrome", Title: "YouTube"}}},
		At:       start,
	}}
	report := activity.Summarize(observed, start, end, time.UTC)
	if !report.HasActivity() {
		t.Fatal("test report unexpectedly empty")
	}
	return report
}

func history(now time.Time) []domain.Message {
	return []domain.Message{
		domain.NewMessage(domain.RoleSystem, "you are a coach", now),
		domain.NewMessage(domain.RoleUser, "working on my thesis", now),
	}
}

func TestEvaluateAffirmationMeansNoInterrupt(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{response: "the user is on task\n" + VerdictDelimiter + "\n" + AffirmationPrefix + "!"}
	e := NewEvaluator(provider, nil, time.Hour, now)

	pair, err := e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if pair != nil {
		t.Errorf("expected no interrupt for affirmation verdict, got %+v", pair)
	}
}

func TestEvaluateOtherVerdictInterrupts(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{response: "hmm, YouTube again\n" + VerdictDelimiter + "\nBack to the thesis?"}
	e := NewEvaluator(provider, nil, time.Hour, now)

	pair, err := e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(pair) != 2 {
		t.Fatalf("expected [report, reply] pair, got %d messages", len(pair))
	}
	if pair[0].Role != domain.RoleSystem {
		t.Errorf("expected activity-report message first, got role %q", pair[0].Role)
	}
	if pair[1].Role != domain.RoleAssistant || pair[1].Content != "Back to the thesis?" {
		t.Errorf("unexpected reply message: %+v", pair[1])
	}
}

func TestEvaluateMissingDelimiterSkips(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{response: "I forgot the delimiter, interrupt the user now!"}
	e := NewEvaluator(provider, nil, time.Hour, now)

	pair, err := e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("expected silent skip, got error: %v", err)
	}
	if pair != nil {
		t.Errorf("expected nil result for missing delimiter, got %+v", pair)
	}
}

func TestEvaluateHeaderOnlyReportShortCircuits(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{response: "should never be called"}
	e := NewEvaluator(provider, nil, time.Hour, now)

	start := now.Add(-10 * time.Minute)
	empty := activity.Summarize(nil, start, now, time.UTC)

	pair, err := e.Evaluate(context.Background(), history(now), empty, now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if pair != nil {
		t.Errorf("expected nil result for header-only report, got %+v", pair)
	}
	if provider.calls != 0 {
		t.Errorf("expected no completion call, got %d", provider.calls)
	}
}

func TestEvaluateCompletionErrorPropagates(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{err: errors.New("upstream 500")}
	e := NewEvaluator(provider, nil, time.Hour, now)

	_, err := e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err == nil {
		t.Fatal("expected error from failed completion")
	}
}

func TestEvaluateLongSilenceEncourages(t *testing.T) {
	start := time.Now()
	provider := &fakeProvider{response: "on task\n" + VerdictDelimiter + "\n" + AffirmationPrefix}
	e := NewEvaluator(provider, nil, 30*time.Minute, start)
	e.pick = func(n int) int { return 0 }

	// Within the threshold: affirmation stays silent.
	now := start.Add(10 * time.Minute)
	pair, err := e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if pair != nil {
		t.Fatalf("expected silence within threshold, got %+v", pair)
	}

	// Past the threshold: an encouragement substitutes for the affirmation.
	now = start.Add(31 * time.Minute)
	pair, err = e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(pair) != 2 {
		t.Fatalf("expected encouragement pair past threshold, got %d messages", len(pair))
	}
	if pair[1].Content != encouragements[0] {
		t.Errorf("expected encouragement message, got %q", pair[1].Content)
	}

	// Firing resets the silence clock.
	now = now.Add(10 * time.Minute)
	pair, err = e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if pair != nil {
		t.Errorf("expected silence after reset, got %+v", pair)
	}
}

func TestEvaluateLongSilenceSurvivesParseFailures(t *testing.T) {
	start := time.Now()
	provider := &fakeProvider{response: "no delimiter in sight"}
	e := NewEvaluator(provider, nil, 30*time.Minute, start)
	e.pick = func(n int) int { return 1 }

	// Within the threshold a parse failure stays silent.
	now := start.Add(10 * time.Minute)
	pair, err := e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if pair != nil {
		t.Fatalf("expected silence within threshold, got %+v", pair)
	}

	// Past the threshold the silence clock fires even though the model kept
	// ignoring the delimiter convention.
	now = start.Add(31 * time.Minute)
	pair, err = e.Evaluate(context.Background(), history(now), testReport(t), now)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(pair) != 2 {
		t.Fatalf("expected encouragement pair past threshold, got %d messages", len(pair))
	}
	if pair[1].Content != encouragements[1] {
		t.Errorf("expected encouragement message, got %q", pair[1].Content)
	}
}

func TestEvaluateHidesDebugMessagesFromModel(t *testing.T) {
	now := time.Now()
	provider := &fakeProvider{response: "ok\n" + VerdictDelimiter + "\n" + AffirmationPrefix}
	e := NewEvaluator(provider, nil, time.Hour, now)

	msgs := append(history(now), domain.NewMessage(domain.RoleDebug, "raw window dump", now))
	if _, err := e.Evaluate(context.Background(), msgs, testReport(t), now); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if provider.calls != 1 {
		t.Fatalf("expected one completion call, got %d", provider.calls)
	}
	for _, m := range provider.prompts[0] {
		if m.Content == "raw window dump" {
			t.Error("debug message leaked into the completion prompt")
		}
	}
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{"normal", "reasoning here\n" + VerdictDelimiter + "\nGet back to work", "Get back to work", true},
		{"no delimiter", "just some text", "", false},
		{"empty verdict", "reasoning\n" + VerdictDelimiter + "\n   ", "", false},
		{"delimiter only", VerdictDelimiter + " verdict", "verdict", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseVerdict(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("parseVerdict(%q) ok = %v, want %v", tt.raw, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("parseVerdict(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestIsAffirmation(t *testing.T) {
	if !isAffirmation(AffirmationPrefix + ", seriously!") {
		t.Error("expected prefix match to count as affirmation")
	}
	if isAffirmation("Nice try, but get back to work") {
		t.Error("expected non-prefixed verdict to be an interruption")
	}
}
