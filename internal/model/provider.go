package model

import "time"

// Provider is an upstream AI service the gateway forwards requests to.
// APIKey is the upstream credential the gateway presents on behalf of
// its users; it is never exposed through the API.
type Provider struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	BaseURL   string         `json:"base_url"`
	APIKey    string         `json:"-"`
	Models    []ModelSpec    `json:"models"`
	IsActive  bool           `json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ModelSpec declares one model a provider serves and the single
// gateway endpoint it may be called through.
type ModelSpec struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"` // e.g. "/v1/chat/completions"
}

// Serves reports whether the provider offers the model on the given
// endpoint path.
func (p *Provider) Serves(modelName, endpoint string) bool {
	for _, m := range p.Models {
		if m.Name == modelName && m.Endpoint == endpoint {
			return true
		}
	}
	return false
}

// HasModel reports whether the provider offers the model on any endpoint.
func (p *Provider) HasModel(modelName string) bool {
	for _, m := range p.Models {
		if m.Name == modelName {
			return true
		}
	}
	return false
}
