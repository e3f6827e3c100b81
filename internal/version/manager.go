package version

import (
	"context"
	"fmt"

	"github.com/emrgen/digidoc/internal/model"
	"github.com/emrgen/digidoc/internal/store"
	"github.com/google/uuid"
)

// Manager appends and resolves versions. It works on whatever store it is handed,
// usually the transaction of the calling transition.
type Manager struct {
}

func NewManager() *Manager {
	return &Manager{}
}

// AppendResult is the outcome of AppendVersion.
type AppendResult struct {
	Created *model.Document
	// Superseded is the previous head when it was Published and had to step down.
	Superseded *model.Document
	Previous   *model.Document
}

// AppendVersion adds draft as version N+1 of the lineage. Fields the draft leaves unset are
// carried forward from the current version. A Published head is marked Superseded.
func (m *Manager) AppendVersion(ctx context.Context, tx store.DocumentStore, lineageID string, draft *model.Document, legalHold bool) (*AppendResult, error) {
	chain, err := tx.ListLineage(ctx, lineageID)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("lineage %s: %w", lineageID, model.ErrNotFound)
	}

	head := chain[0]
	if head.Status == model.StatusPurged {
		return nil, fmt.Errorf("%w: lineage %s is purged", model.ErrImmutableLineage, lineageID)
	}
	if legalHold {
		return nil, fmt.Errorf("%w: lineage %s is under legal hold", model.ErrImmutableLineage, lineageID)
	}

	prior, _ := Current(chain)
	if prior == nil {
		prior = head
	}

	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	draft.LineageID = lineageID
	draft.VersionNumber = head.VersionNumber + 1
	draft.SupersedesID = &head.ID
	draft.Revision = 0
	if err := carryForward(prior, draft); err != nil {
		return nil, err
	}

	result := &AppendResult{Created: draft, Previous: head}

	if head.Status == model.StatusPublished {
		down := head.Clone()
		down.Status = model.StatusSuperseded
		if err := tx.CompareAndSwapDocument(ctx, down, head.Status, head.Revision); err != nil {
			return nil, err
		}
		result.Superseded = down
	}

	if err := tx.CreateDocument(ctx, draft); err != nil {
		return nil, err
	}

	return result, nil
}

func carryForward(prior, draft *model.Document) error {
	if draft.Category == "" {
		draft.Category = prior.Category
	}
	if draft.Department == "" {
		draft.Department = prior.Department
	}
	if draft.ConfidentialityLevel == "" {
		draft.ConfidentialityLevel = prior.ConfidentialityLevel
	}
	if draft.OwnerID == "" {
		draft.OwnerID = prior.OwnerID
	}
	if draft.ContainerID == nil {
		draft.ContainerID = prior.ContainerID
	}
	if draft.BatchID == nil {
		draft.BatchID = prior.BatchID
	}
	if draft.ApprovalStatus == "" {
		draft.ApprovalStatus = model.ApprovalNotRequired
	}

	merged, err := mergeMetadata(prior.Metadata, draft.Metadata)
	if err != nil {
		return err
	}
	draft.Metadata = merged

	return nil
}

// ResolveCurrent returns the current version of the lineage. ErrNoCurrentVersion comes
// back with the newest superseded version when no valid version is left.
func (m *Manager) ResolveCurrent(ctx context.Context, s store.DocumentStore, lineageID string) (*model.Document, error) {
	chain, err := s.ListLineage(ctx, lineageID)
	if err != nil {
		return nil, err
	}
	return Current(chain)
}

// ListVersions returns every version of the lineage, newest first.
func (m *Manager) ListVersions(ctx context.Context, s store.DocumentStore, lineageID string) ([]*model.Document, error) {
	chain, err := s.ListLineage(ctx, lineageID)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("lineage %s: %w", lineageID, model.ErrNotFound)
	}
	return chain, nil
}

// IsHead reports whether doc has the highest version number of its lineage.
func IsHead(chain []*model.Document, doc *model.Document) bool {
	return len(chain) > 0 && chain[0].ID == doc.ID
}

// OtherPublished reports whether a version other than doc is Published.
func OtherPublished(chain []*model.Document, doc *model.Document) bool {
	for _, d := range chain {
		if d.ID != doc.ID && d.Status == model.StatusPublished {
			return true
		}
	}
	return false
}
