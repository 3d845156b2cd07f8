package domain

import "time"

// seedCount is the reseed floor: a conversation never shrinks below the
// seeded system message and assistant greeting.
const seedCount = 2

const systemPrompt = `You are attent, a friendly productivity coach that lives on the user's computer. ` +
	`You receive periodic summaries of which application windows the user has had visible, ` +
	`and you chat with the user about what they are working on. ` +
	`Be brief, warm, and concrete. Never lecture. ` +
	`When the user drifts into a distraction, nudge them back with one or two sentences.`

const greeting = `Hey! I'm attent. I'll keep you company while you work and give you a nudge if you drift. What are you working on today?`

// SeedMessages returns the two initial messages for a fresh user: one system
// message and one assistant greeting.
func SeedMessages(now time.Time) []Message {
	return []Message{
		NewMessage(RoleSystem, systemPrompt, now),
		NewMessage(RoleAssistant, greeting, now),
	}
}

// Seed installs the initial messages on a freshly adopted AppState.
func (s *AppState) Seed(now time.Time) {
	s.Messages = SeedMessages(now)
}

// ClearAll resets the history to the two seeded messages, reseeding if fewer
// than two would remain.
func (s *AppState) ClearAll(now time.Time) {
	if len(s.Messages) < seedCount {
		s.Seed(now)
		return
	}
	s.Messages = s.Messages[:seedCount]
}

// ClearLast removes the trailing n messages, never dropping below the reseed
// floor. The caller is expected to have popped the command message already.
func (s *AppState) ClearLast(n int, now time.Time) {
	if n < 0 {
		n = 0
	}
	remaining := len(s.Messages) - n
	if remaining < seedCount {
		s.ClearAll(now)
		return
	}
	s.Messages = s.Messages[:remaining]
}
