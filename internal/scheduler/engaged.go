package scheduler

import (
	"context"
	"fmt"

	"github.com/MLTQ/Ponderer/internal/events"
	"github.com/MLTQ/Ponderer/internal/logging"
	"github.com/MLTQ/Ponderer/internal/toolgate"
	"github.com/MLTQ/Ponderer/internal/types"
)

// runEngagedPath reacts to private chat messages (§4.9.5): it generates a
// reply under the PrivateChat profile, streams progress via the
// broadcaster, and atomically flips each message to processed once a reply
// is recorded.
func (s *Scheduler) runEngagedPath(ctx context.Context, msgs []types.PrivateMessage) {
	if s.gate != nil {
		s.gate.SetProfile(toolgate.ProfilePrivateChat)
	}

	for _, m := range msgs {
		if s.budget != nil {
			if ok, reason := s.budget.CanSpend(); !ok {
				logging.Warn("scheduler", "engaged path budget exhausted, deferring message %d: %s", m.ID, reason)
				continue
			}
		}

		s.broadcaster.Publish(events.ChatStreaming, map[string]any{"channel_id": m.ChannelID, "status": "started"})

		prompt := buildChatPrompt(m)
		if err := s.store.RecordTurnPrompt(m.ID, prompt); err != nil {
			logging.Error("scheduler", "record turn prompt for message %d failed: %v", m.ID, err)
		}

		reply, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			logging.Error("scheduler", "engaged reply generation failed for message %d: %v", m.ID, err)
			s.broadcaster.Publish(events.ErrorEvent, map[string]string{"description": "chat reply failed: " + err.Error()})
			continue
		}

		if err := s.store.AnswerPrivateMessage(m.ID, reply); err != nil {
			logging.Error("scheduler", "answer private message %d failed: %v", m.ID, err)
			continue
		}
		if s.budget != nil {
			s.budget.Spend(len(reply) / 4) // rough token estimate; exact accounting lives with the LLM client
		}
		s.broadcaster.Publish(events.ChatStreaming, map[string]any{"channel_id": m.ChannelID, "status": "completed"})
	}
}

func buildChatPrompt(m types.PrivateMessage) string {
	return fmt.Sprintf("Reply to this private message from %s:\n\n%s", m.Author, m.Content)
}

// runSkillEventCycle runs under the SkillEvents profile whenever the
// disposition is anything but Idle (§4.9.1 step 7). Ponderer's skill
// surface is wired through the same tool-calling machinery as the engaged
// path; with no pending skill events queued there is nothing further to do
// this tick beyond switching the gate's active profile so any tool calls
// a dream or ambient step makes in between are still correctly gated.
func (s *Scheduler) runSkillEventCycle(ctx context.Context, o types.Orientation) {
	if s.gate != nil {
		s.gate.SetProfile(toolgate.ProfileSkillEvents)
	}
}
