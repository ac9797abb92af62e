package sips

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a SIP. The happy path is monotonically
// non-decreasing; a failed stage reverts its in-progress status back to the
// stage's start status so the stage can be safely re-triggered.
type Status string

const (
	StatusCreated       Status = "created"
	StatusExtracting    Status = "extracting"
	StatusExtracted     Status = "extracted"
	StatusRestructuring Status = "restructuring"
	StatusRestructured  Status = "restructured"
	StatusAssembling    Status = "assembling"
	StatusAssembled     Status = "assembled"
	StatusApproving     Status = "approving"
	StatusApproved      Status = "approved"
	StatusCleaningUp    Status = "cleaning_up"
	StatusCleanedUp     Status = "cleaned_up"
)

var allStatuses = []Status{
	StatusCreated,
	StatusExtracting,
	StatusExtracted,
	StatusRestructuring,
	StatusRestructured,
	StatusAssembling,
	StatusAssembled,
	StatusApproving,
	StatusApproved,
	StatusCleaningUp,
	StatusCleanedUp,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// StageName identifies one pipeline stage.
type StageName string

const (
	StageExtract        StageName = "extract"
	StageRestructure    StageName = "restructure"
	StageAssemble       StageName = "assemble"
	StageStartTransfer  StageName = "start_transfer"
	StageRequestCleanup StageName = "request_cleanup"
)

// Stage binds a stage name to its start, in-progress, and end statuses. The
// in-progress status marks claimed work and is the sole concurrency guard.
type Stage struct {
	Name       StageName
	Start      Status
	InProgress Status
	End        Status
}

// stageTable is the single authoritative transition table. Stage ordering is
// fixed and linear; a SIP advances one stage per external trigger.
var stageTable = []Stage{
	{Name: StageExtract, Start: StatusCreated, InProgress: StatusExtracting, End: StatusExtracted},
	{Name: StageRestructure, Start: StatusExtracted, InProgress: StatusRestructuring, End: StatusRestructured},
	{Name: StageAssemble, Start: StatusRestructured, InProgress: StatusAssembling, End: StatusAssembled},
	{Name: StageStartTransfer, Start: StatusAssembled, InProgress: StatusApproving, End: StatusApproved},
	{Name: StageRequestCleanup, Start: StatusApproved, InProgress: StatusCleaningUp, End: StatusCleanedUp},
}

// Stages returns the ordered stage table.
func Stages() []Stage {
	cp := make([]Stage, len(stageTable))
	copy(cp, stageTable)
	return cp
}

// StageNamed looks up a stage by name.
func StageNamed(name StageName) (Stage, bool) {
	for _, stage := range stageTable {
		if stage.Name == name {
			return stage, true
		}
	}
	return Stage{}, false
}

// ParseStageName converts a string into a known StageName.
func ParseStageName(value string) (StageName, bool) {
	normalized := StageName(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := StageNamed(normalized); !ok {
		return "", false
	}
	return normalized, true
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsInProgressStatus reports whether a status marks claimed, in-flight work.
func IsInProgressStatus(status Status) bool {
	for _, stage := range stageTable {
		if stage.InProgress == status {
			return true
		}
	}
	return false
}

// StartForInProgress returns the start status an in-progress status reverts
// to when its stage fails or is reset.
func StartForInProgress(status Status) (Status, bool) {
	for _, stage := range stageTable {
		if stage.InProgress == status {
			return stage.Start, true
		}
	}
	return "", false
}

// SIP represents a submission information package persisted in SQLite.
// Path always reflects the artifact's current on-disk location: an archive
// before extraction, a bag directory until assembly, then an archive again.
type SIP struct {
	ID                int64
	Identifier        string
	Status            Status
	Path              string
	Origin            string
	ExternalReference string
	MetadataJSON      string
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

// IsInProgress returns true when the SIP is claimed by a stage.
func (s SIP) IsInProgress() bool {
	return IsInProgressStatus(s.Status)
}
