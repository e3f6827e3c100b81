// Package version maintains the ordered chain of versions that share a lineage.
package version

import (
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/digidoc/internal/model"
)

// Current picks the current version from a chain sorted newest first: the newest version
// that is not superseded, purged or in the recycle bin. A version in the recycle bin only
// becomes current again once restored. When none qualifies the newest superseded version
// is returned together with ErrNoCurrentVersion.
func Current(chain []*model.Document) (*model.Document, error) {
	if len(chain) == 0 {
		return nil, model.ErrNotFound
	}

	var fallback *model.Document
	for _, doc := range chain {
		switch {
		case doc.Status == model.StatusSuperseded:
			if fallback == nil {
				fallback = doc
			}
		case doc.Status == model.StatusPurged, doc.Status.InRecycleBin():
		default:
			return doc, nil
		}
	}

	if fallback != nil {
		return fallback, model.ErrNoCurrentVersion
	}
	return nil, model.ErrNoCurrentVersion
}

// Validate checks the structural invariants of a chain sorted newest first.
func Validate(chain []*model.Document) error {
	if len(chain) == 0 {
		return nil
	}

	byID := make(map[string]*model.Document, len(chain))
	numbers := mapset.NewThreadUnsafeSet[int64]()
	published := 0
	for i, doc := range chain {
		if doc.VersionNumber <= 0 {
			return fmt.Errorf("version %d of lineage %s is not positive", doc.VersionNumber, doc.LineageID)
		}
		if !numbers.Add(doc.VersionNumber) {
			return fmt.Errorf("duplicate version %d in lineage %s", doc.VersionNumber, doc.LineageID)
		}
		if i > 0 && chain[i-1].VersionNumber < doc.VersionNumber {
			return fmt.Errorf("lineage %s is not ordered newest first", doc.LineageID)
		}
		if doc.LineageID != chain[0].LineageID {
			return fmt.Errorf("document %s belongs to lineage %s", doc.ID, doc.LineageID)
		}
		if doc.Status == model.StatusPublished {
			published++
		}
		byID[doc.ID] = doc
	}
	if published > 1 {
		return fmt.Errorf("lineage %s has %d published versions", chain[0].LineageID, published)
	}

	visited := mapset.NewThreadUnsafeSet[string]()
	cur := chain[0]
	for cur.SupersedesID != nil {
		if !visited.Add(cur.ID) {
			return fmt.Errorf("cycle in lineage %s at %s", cur.LineageID, cur.ID)
		}
		next, ok := byID[*cur.SupersedesID]
		if !ok {
			return fmt.Errorf("document %s supersedes unknown document %s", cur.ID, *cur.SupersedesID)
		}
		if next.VersionNumber >= cur.VersionNumber {
			return fmt.Errorf("document %s supersedes a newer version", cur.ID)
		}
		cur = next
	}

	root := chain[len(chain)-1]
	if cur.ID != root.ID || root.ID != root.LineageID {
		return fmt.Errorf("lineage %s does not lead back to its first version", root.LineageID)
	}

	return nil
}

// mergeMetadata copies keys of prior that next leaves unset. next is returned untouched
// when nothing needs to be carried forward so the caller's bytes survive as given.
func mergeMetadata(prior, next []byte) ([]byte, error) {
	if len(prior) == 0 {
		return next, nil
	}
	if len(next) == 0 {
		return prior, nil
	}

	var old, cur map[string]json.RawMessage
	if err := json.Unmarshal(prior, &old); err != nil {
		return next, nil
	}
	if err := json.Unmarshal(next, &cur); err != nil {
		return nil, fmt.Errorf("%w: metadata must be a JSON object", model.ErrGuardFailed)
	}

	changed := false
	for k, v := range old {
		if _, ok := cur[k]; !ok {
			cur[k] = v
			changed = true
		}
	}
	if !changed {
		return next, nil
	}

	return json.Marshal(cur)
}
