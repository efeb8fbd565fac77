package event

import "github.com/CuriosityQuantified/tandemai/pkg/types"

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	Info *types.Session `json:"info"`
}

// MessageCreatedData is the data for message.created events.
type MessageCreatedData struct {
	Info *types.Message `json:"info"`
}

// MessageUpdatedData is the data for message.updated events.
type MessageUpdatedData struct {
	Info *types.Message `json:"info"`
}

// MessageRemovedData is the data for message.removed events.
type MessageRemovedData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
}

// LLMThinkingData carries one streamed delta of a worker or supervisor
// model's output before it is folded into a message part.
type LLMThinkingData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	Agent     string `json:"agent"`
	Delta     string `json:"delta"`
}

// ToolCallData is published when a tool call is about to execute.
type ToolCallData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	CallID    string `json:"callID"`
	Agent     string `json:"agent"`
	Tool      string `json:"tool"`
	Input     any    `json:"input"`
}

// ToolResultData is published when a tool call finishes.
type ToolResultData struct {
	SessionID string `json:"sessionID"`
	MessageID string `json:"messageID"`
	CallID    string `json:"callID"`
	Tool      string `json:"tool"`
	Output    string `json:"output,omitempty"`
	IsError   bool   `json:"isError,omitempty"`
}

// PlanUpdateData is published whenever the research plan's steps change.
type PlanUpdateData struct {
	SessionID string           `json:"sessionID"`
	Plan      *types.Plan      `json:"plan"`
	Changed   []types.PlanStep `json:"changed,omitempty"`
}

// WorkerTransitionData is published when the router hands control to a
// different worker role, or back to the supervisor.
type WorkerTransitionData struct {
	SessionID string `json:"sessionID"`
	From      string `json:"from"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
}

// ApprovalRequestData is published when a HITL gate opens.
type ApprovalRequestData struct {
	Request types.ApprovalRequest `json:"request"`
}

// ApprovalResolvedData is published when a HITL gate closes, whether by
// approval, rejection, or TTL expiry.
type ApprovalResolvedData struct {
	ID        string               `json:"id"`
	SessionID string               `json:"sessionID"`
	Status    types.ApprovalStatus `json:"status"`
}

// ErrorData reports a non-fatal error surfaced mid-run.
type ErrorData struct {
	SessionID string              `json:"sessionID,omitempty"`
	Error     *types.MessageError `json:"error,omitempty"`
}

// StreamCompleteData is the payload of the guaranteed terminal event of
// every session stream. Success is false for both "error" and
// "cancelled" reasons; spec.md §6 names SessionID/Success as
// ThreadID/Success on the wire, so the chat handler relabels them.
type StreamCompleteData struct {
	SessionID string `json:"sessionID"`
	Reason    string `json:"reason"` // "finished" | "error" | "cancelled"
	Success   bool   `json:"success"`
}
