package server

import (
	"github.com/poiesic/stratum/core"
)

// QueryRequest is the body of POST /v1/query.
type QueryRequest struct {
	Query string `json:"query" binding:"required,max=4000"`
}

// QueryResponse is the answer to a query together with how it was reached.
type QueryResponse struct {
	QueryID    string      `json:"queryId"`
	Answer     core.Answer `json:"answer"`
	Conditions []string    `json:"conditions"`
	Entries    []string    `json:"contextIds"`
	Truncated  bool        `json:"truncated"`
	Candidates int         `json:"candidates"`
}

// VoxelResponse is a single voxel with its attributes rendered as JSON
// scalars.
type VoxelResponse struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// NeighborResponse is one adjacency edge.
type NeighborResponse struct {
	To        string  `json:"to"`
	Direction string  `json:"direction"`
	Distance  float64 `json:"distance"`
}

// PathResponse is a shortest path, both ends included.
type PathResponse struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Path []string `json:"path"`
	Hops int      `json:"hops"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Voxels int    `json:"voxels"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func voxelResponse(v *core.Voxel) VoxelResponse {
	attrs := make(map[string]any, len(v.Attributes))
	for name, val := range v.Attributes {
		switch val.Kind {
		case core.KindNumeric:
			attrs[name] = val.Num
		case core.KindBoolean:
			attrs[name] = val.Bool
		default:
			attrs[name] = val.Str
		}
	}
	return VoxelResponse{ID: v.ID, Attributes: attrs}
}
