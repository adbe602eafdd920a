package model

// ListResponse is the standard envelope for list endpoints.
type ListResponse struct {
	Object string        `json:"object"` // always "list"
	Data   []interface{} `json:"data"`
	Count  int           `json:"count"`
}

// NewListResponse wraps items in the list envelope.
func NewListResponse(items []interface{}) ListResponse {
	if items == nil {
		items = []interface{}{}
	}
	return ListResponse{Object: "list", Data: items, Count: len(items)}
}

// ErrorResponse is the error envelope for every failure the API
// returns: a short human-readable reason and nothing else. Internal
// identifiers and store errors never appear here.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// DeletedResponse acknowledges a successful delete.
type DeletedResponse struct {
	Object  string `json:"object"` // always "deleted"
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}
