package types

// ApprovalStatus is the lifecycle state of an ApprovalRequest.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalExpired  ApprovalStatus = "expired"
)

// ApprovalKind identifies what kind of action an ApprovalRequest gates.
type ApprovalKind string

const (
	ApprovalWriteFile  ApprovalKind = "write_file"
	ApprovalEditFile   ApprovalKind = "edit_file"
	ApprovalDeleteFile ApprovalKind = "delete_file"
)

// ApprovalRequest is a human-in-the-loop gate on a file-mutating tool
// call. Delete-kind requests and requests whose TargetPath resolves
// outside the session's sandbox root are never eligible for the
// auto_approve fast path, regardless of configuration.
type ApprovalRequest struct {
	ID               string         `json:"id"`
	SessionID        string         `json:"sessionID"`
	Kind             ApprovalKind   `json:"kind"`
	TargetPath       string         `json:"targetPath"`
	ProposedContent  string         `json:"proposedContent,omitempty"`
	Diff             string         `json:"diff,omitempty"`
	CreatedAt        int64          `json:"createdAt"`
	TTLSeconds       int            `json:"ttlSeconds"`
	Status           ApprovalStatus `json:"status"`
}
