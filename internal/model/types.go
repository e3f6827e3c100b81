package model

import mapset "github.com/deckarep/golang-set/v2"

// Status is the lifecycle state of a single document version.
type Status string

const (
	StatusReceived         Status = "Received"
	StatusProcessing       Status = "Processing"
	StatusClassified       Status = "Classified"
	StatusPendingApproval  Status = "PendingApproval"
	StatusApproved         Status = "Approved"
	StatusRejected         Status = "Rejected"
	StatusChangesRequested Status = "ChangesRequested"
	StatusPublished        Status = "Published"
	StatusSuperseded       Status = "Superseded"
	StatusSoftDeleted      Status = "SoftDeleted"
	StatusPendingDeletion  Status = "PendingDeletion"
	StatusPurged           Status = "Purged"
)

var deletionStates = mapset.NewSet(StatusSoftDeleted, StatusPendingDeletion)

// InRecycleBin reports whether the document is deleted but still restorable.
func (s Status) InRecycleBin() bool {
	return deletionStates.Contains(s)
}

// Terminal reports whether no further transition can leave this state.
func (s Status) Terminal() bool {
	return s == StatusPurged
}

// Confidentiality is the declared sensitivity of a document.
type Confidentiality string

const (
	ConfidentialityPublic       Confidentiality = "Public"
	ConfidentialityInternal     Confidentiality = "Internal"
	ConfidentialityConfidential Confidentiality = "Confidential"
	ConfidentialityRestricted   Confidentiality = "Restricted"
)

// Valid reports whether c is one of the known levels.
func (c Confidentiality) Valid() bool {
	switch c {
	case ConfidentialityPublic, ConfidentialityInternal, ConfidentialityConfidential, ConfidentialityRestricted:
		return true
	}
	return false
}

// Sensitive levels are the ones whose reads end up in the restricted access report.
func (c Confidentiality) Sensitive() bool {
	return c == ConfidentialityConfidential || c == ConfidentialityRestricted
}

// ApprovalStatus tracks the approval decision separately from Status.
type ApprovalStatus string

const (
	ApprovalNotRequired ApprovalStatus = "NotRequired"
	ApprovalPending     ApprovalStatus = "PendingApproval"
	ApprovalApproved    ApprovalStatus = "Approved"
	ApprovalRejected    ApprovalStatus = "Rejected"
)

// Event is a lifecycle trigger accepted by the state machine.
type Event string

const (
	EventStartProcessing     Event = "startProcessing"
	EventClassify            Event = "classify"
	EventSubmitForApproval   Event = "submitForApproval"
	EventAutoPublish         Event = "autoPublish"
	EventApprove             Event = "approve"
	EventPublish             Event = "publish"
	EventReject              Event = "reject"
	EventRequestChanges      Event = "requestChanges"
	EventReclassify          Event = "reclassify"
	EventReupload            Event = "reupload"
	EventSoftDelete          Event = "softDelete"
	EventRestore             Event = "restore"
	EventPurge               Event = "purge"
	EventMarkPendingDeletion Event = "markPendingDeletion"
)

// Role is the coarse role of a principal.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleManager  Role = "Manager"
	RoleOperator Role = "Operator"
	RoleViewer   Role = "Viewer"
	RoleSystem   Role = "System"
)

// Principal identifies who performs an operation. Authentication happens upstream.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// SystemPrincipal is used for policy driven transitions.
var SystemPrincipal = Principal{ID: "system:retention", Role: RoleSystem}

func (p Principal) Authenticated() bool {
	return p.ID != ""
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Elevated principals may purge, toggle legal hold and read Confidential documents.
func (p Principal) Elevated() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager || p.Role == RoleSystem
}
