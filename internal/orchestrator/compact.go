package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/CuriosityQuantified/tandemai/internal/provider"
	"github.com/CuriosityQuantified/tandemai/internal/storage"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

// CompactionConfig controls when and how a session's older transcript is
// folded into a summary so a long-running reasoning loop doesn't exceed
// its model's context window.
type CompactionConfig struct {
	TriggerMessages  int // compact once the transcript exceeds this many messages
	KeepRecent       int // always send this many most-recent messages verbatim
	SummaryMaxTokens int
}

// DefaultCompactionConfig mirrors the teacher's defaults.
var DefaultCompactionConfig = CompactionConfig{
	TriggerMessages:  40,
	KeepRecent:       12,
	SummaryMaxTokens: 2000,
}

const compactionSystemPrompt = `You are a conversation summarizer for a research agent's own working
transcript. Create a concise summary that preserves key context for continuing the work:

1. What was accomplished
2. Files or sources involved
3. Any constraints or success criteria already established
4. Current work in progress

Be concise but detailed enough that the agent can continue seamlessly without the raw messages.`

func compactionPath(sessionID string) []string {
	return []string{"compaction", sessionID}
}

// compactionRecord is the cached summary of every message up to and
// including ThroughCreated.
type compactionRecord struct {
	Summary        string `json:"summary"`
	ThroughCreated int64  `json:"throughCreated"`
}

// promptMessages returns the message/part view step() should actually
// send to the model: the full transcript, unless it has grown past
// DefaultCompactionConfig.TriggerMessages, in which case everything
// older than the kept tail is replaced by one cached summary message
// (refreshed via refreshCompaction when the tail has grown since the last
// summary). The persisted transcript itself is never mutated or
// shortened; only this in-memory prompt view is.
func (p *Processor) promptMessages(ctx context.Context, sess *types.Session, messages []*types.Message, partsByMsg map[string][]types.Part) ([]*types.Message, map[string][]types.Part) {
	if len(messages) <= DefaultCompactionConfig.TriggerMessages {
		return messages, partsByMsg
	}

	cutIndex := len(messages) - DefaultCompactionConfig.KeepRecent
	if cutIndex <= 0 {
		return messages, partsByMsg
	}

	record, err := p.loadCompactionRecord(ctx, sess.ID)
	if err != nil || record == nil || record.ThroughCreated < messages[cutIndex-1].Time.Created {
		refreshed, err := p.refreshCompaction(ctx, sess, messages[:cutIndex], partsByMsg)
		if err != nil {
			return messages, partsByMsg
		}
		record = refreshed
	}

	summaryMsg := &types.Message{ID: "compaction-summary", SessionID: sess.ID, Role: "system"}
	view := make([]*types.Message, 0, len(messages)-cutIndex+1)
	view = append(view, summaryMsg)
	view = append(view, messages[cutIndex:]...)

	viewParts := make(map[string][]types.Part, len(partsByMsg))
	for id, parts := range partsByMsg {
		viewParts[id] = parts
	}
	viewParts[summaryMsg.ID] = []types.Part{&types.TextPart{
		ID:        "compaction-summary-text",
		SessionID: sess.ID,
		MessageID: summaryMsg.ID,
		Type:      "text",
		Text:      "Summary of earlier conversation:\n\n" + record.Summary,
	}}

	return view, viewParts
}

func (p *Processor) loadCompactionRecord(ctx context.Context, sessionID string) (*compactionRecord, error) {
	var record compactionRecord
	if err := p.tools.Storage().Get(ctx, compactionPath(sessionID), &record); err != nil {
		if err == storage.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// refreshCompaction summarizes toSummarize via the default model and
// caches the result, keyed by the last summarized message's creation
// time so promptMessages knows when it must be redone.
func (p *Processor) refreshCompaction(ctx context.Context, sess *types.Session, toSummarize []*types.Message, partsByMsg map[string][]types.Part) (*compactionRecord, error) {
	model, err := p.providers.DefaultModel()
	if err != nil {
		return nil, err
	}
	prov, err := p.providers.Get(model.ProviderID)
	if err != nil {
		return nil, err
	}

	stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
		Model: model.ID,
		Messages: []*schema.Message{
			{Role: schema.System, Content: compactionSystemPrompt},
			{Role: schema.User, Content: buildSummaryPrompt(toSummarize, partsByMsg)},
		},
		MaxTokens: DefaultCompactionConfig.SummaryMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var summary strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		summary.WriteString(chunk.Content)
	}

	record := &compactionRecord{
		Summary:        summary.String(),
		ThroughCreated: toSummarize[len(toSummarize)-1].Time.Created,
	}
	if err := p.tools.Storage().Put(ctx, compactionPath(sess.ID), record); err != nil {
		return nil, err
	}
	return record, nil
}

func buildSummaryPrompt(messages []*types.Message, partsByMsg map[string][]types.Part) string {
	var b strings.Builder
	b.WriteString("Summarize this conversation:\n\n---\n\n")
	for _, msg := range messages {
		if msg.Role == "user" {
			b.WriteString("USER:\n")
		} else {
			b.WriteString("ASSISTANT:\n")
		}
		for _, part := range partsByMsg[msg.ID] {
			switch pt := part.(type) {
			case *types.TextPart:
				b.WriteString(pt.Text)
				b.WriteString("\n")
			case *types.ToolPart:
				fmt.Fprintf(&b, "[Tool: %s]\n", pt.ToolName)
				if pt.Output != nil {
					output := *pt.Output
					if len(output) > 500 {
						output = output[:500] + "..."
					}
					b.WriteString(output)
					b.WriteString("\n")
				}
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}
