package orchestrator

import (
	"context"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/CuriosityQuantified/tandemai/internal/event"
	"github.com/CuriosityQuantified/tandemai/internal/provider"
	"github.com/CuriosityQuantified/tandemai/pkg/types"
)

const titleSystemPrompt = `You are a title generator. You output ONLY a thread title. Nothing else.

Generate a brief title that would help a reader find this research run later.

Rules:
- A single line, <=50 characters
- No explanations
- Use -ing verbs for actions (Researching, Comparing, Summarizing)
- Keep exact: technical terms, numbers, filenames
- Remove: the, this, my, a, an
- Always output something meaningful

Examples:
"compare q3 and q4 revenue trends" -> Comparing Q3/Q4 revenue trends
"summarize the attached report" -> Summarizing attached report
"find citations for the claim about inflation" -> Researching inflation claim citations`

const defaultTitlePrefix = "New Session"

func isDefaultTitle(title string) bool {
	return title == "" || title == defaultTitlePrefix || strings.HasPrefix(title, defaultTitlePrefix)
}

// ensureTitle generates a title for sess from its first user message, if
// it is still carrying the default placeholder. Only root sessions get
// a generated title; a delegated child session's title is already the
// task it was given.
func (p *Processor) ensureTitle(ctx context.Context, sess *types.Session, userContent string) {
	if sess.ParentID != nil && *sess.ParentID != "" {
		return
	}
	if !isDefaultTitle(sess.Title) {
		return
	}

	model, err := p.providers.DefaultModel()
	if err != nil {
		return
	}
	prov, err := p.providers.Get(model.ProviderID)
	if err != nil {
		return
	}

	stream, err := prov.CreateCompletion(ctx, &provider.CompletionRequest{
		Model: model.ID,
		Messages: []*schema.Message{
			{Role: schema.System, Content: titleSystemPrompt},
			{Role: schema.User, Content: "Generate a title for this research run:\n\n" + userContent},
		},
		MaxTokens: 50,
	})
	if err != nil {
		return
	}
	defer stream.Close()

	var title strings.Builder
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return
		}
		title.WriteString(msg.Content)
	}

	titleText := strings.TrimSpace(title.String())
	for _, line := range strings.Split(titleText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			titleText = line
			break
		}
	}
	if len(titleText) > 100 {
		titleText = titleText[:97] + "..."
	}
	if titleText == "" {
		return
	}

	if err := p.sessions.SetTitle(ctx, sess, titleText); err != nil {
		return
	}
	event.PublishSync(event.Event{Type: event.SessionUpdated, Data: event.SessionUpdatedData{Info: sess}})
}
