package models

import (
	"strconv"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Scope is a named filter preset for pull.
type Scope string

const (
	ScopeAll        Scope = "all"
	ScopeRecent     Scope = "recent"
	ScopeActiveOnly Scope = "active_only"
)

// ParseScope accepts the wire value; empty means ScopeAll.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeAll:
		return ScopeAll, nil
	case ScopeRecent, ScopeActiveOnly:
		return Scope(s), nil
	}
	return "", common.Invalid("scope", "unknown scope %q", s)
}

// ParseLimit reads a page size from its wire form; empty or 0 means the
// default, matching a zero PullParams.Limit.
func ParseLimit(s string) (int, error) {
	if s == "" {
		return common.DefaultPullLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err == nil && n == 0 {
		return common.DefaultPullLimit, nil
	}
	if err != nil || n < 1 || n > common.MaxPullLimit {
		return 0, common.Invalid("limit", "must be an integer between 1 and %d, got %q", common.MaxPullLimit, s)
	}
	return n, nil
}

// PullParams are the device-supplied pull arguments. A zero Limit means the default.
type PullParams struct {
	Since  *time.Time
	Cursor string
	Limit  int
	Scope  Scope
}

// PullResult is one page of a delta pull.
type PullResult struct {
	Items      []map[string]any
	NextCursor *string
	ServerTime time.Time
	HasMore    bool
	Total      int64
}

// ActiveRule is an entity-specific "active" predicate: a record is inactive
// when Fields[Field] equals one of Inactive. A missing field counts as active.
type ActiveRule struct {
	Field    string
	Inactive []any
}

func (r *ActiveRule) Active(f Fields) bool {
	if r == nil {
		return true
	}
	v, ok := f[r.Field]
	if !ok {
		return true
	}
	for _, in := range r.Inactive {
		if scalarEqual(v, in) {
			return false
		}
	}
	return true
}

// scalarEqual compares JSON scalars; maps and slices never match.
func scalarEqual(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	}
	return false
}

// PageQuery is the storage-level filter behind a pull page.
type PageQuery struct {
	AccountID string
	// Since keeps records with UpdatedAt > Since.
	Since *time.Time
	// UpdatedFrom keeps records with UpdatedAt >= UpdatedFrom (recent scope).
	UpdatedFrom *time.Time
	// After resumes strictly after a cursor position.
	After *Position
	// LiveOnly drops tombstones.
	LiveOnly bool
	Active   *ActiveRule
	Limit    int
}

// Matches evaluates the filter, After and Limit aside, against one record.
func (q PageQuery) Matches(r *Record) bool {
	if r.AccountID != q.AccountID {
		return false
	}
	if q.Since != nil && !r.UpdatedAt.After(*q.Since) {
		return false
	}
	if q.UpdatedFrom != nil && r.UpdatedAt.Before(*q.UpdatedFrom) {
		return false
	}
	if q.LiveOnly && r.IsDeleted() {
		return false
	}
	if q.Active != nil && !q.Active.Active(r.Fields) {
		return false
	}
	return true
}
