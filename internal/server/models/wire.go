package models

import "github.com/dmitrijs2005/fieldsync/internal/common"

// PullResponse is the JSON body of a pull.
type PullResponse struct {
	Items      []map[string]any `json:"items"`
	NextCursor *string          `json:"nextCursor"`
	ServerTime string           `json:"serverTime"`
	HasMore    bool             `json:"hasMore"`
	Total      int64            `json:"total"`
}

// Wire converts a PullResult into its response body.
func (r *PullResult) Wire() PullResponse {
	items := r.Items
	if items == nil {
		items = []map[string]any{}
	}
	return PullResponse{
		Items:      items,
		NextCursor: r.NextCursor,
		ServerTime: FormatTime(r.ServerTime),
		HasMore:    r.HasMore,
		Total:      r.Total,
	}
}

// PushRequest is the JSON body of a push.
type PushRequest struct {
	Mutations []WireMutation `json:"mutations"`
}

// PushResponse is the JSON answer to a push.
type PushResponse struct {
	Results    []MutationResult `json:"results"`
	ServerTime string           `json:"serverTime"`
}

// PullRequest carries pull arguments in their wire form. The HTTP API fills
// it from the query string, gRPC from the request message.
type PullRequest struct {
	Since  string `json:"since,omitempty"`
	Cursor string `json:"cursor,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Scope  string `json:"scope,omitempty"`
}

// Params validates the wire arguments. An empty since means a full sync.
func (r PullRequest) Params() (PullParams, error) {
	var p PullParams

	if r.Since != "" {
		ts, err := ParseTime(r.Since)
		if err != nil {
			return p, common.Invalid("since", "not an ISO-8601 timestamp: %q", r.Since)
		}
		p.Since = &ts
	}

	scope, err := ParseScope(r.Scope)
	if err != nil {
		return p, err
	}
	p.Scope = scope
	p.Cursor = r.Cursor
	p.Limit = r.Limit

	return p, nil
}
