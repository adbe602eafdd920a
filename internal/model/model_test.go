package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAPIKeyMaskedKey(t *testing.T) {
	k := &APIKey{KeyPrefix: "cr-1a2b3c4d"}
	if got := k.MaskedKey(); got != "cr-1a2b3c4d..." {
		t.Errorf("MaskedKey: got %q", got)
	}
}

func TestAPIKeyJSONNeverExposesHash(t *testing.T) {
	k := APIKey{
		ID:      "k1",
		UserID:  "u1",
		Name:    "ci",
		KeyHash: "deadbeef",
	}
	data, err := json.Marshal(k)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "deadbeef") {
		t.Errorf("key hash leaked into JSON: %s", data)
	}
	if strings.Contains(string(data), "last_used") {
		t.Errorf("nil last_used should be omitted: %s", data)
	}
}

func TestAdminJSONNeverExposesPasswordHash(t *testing.T) {
	a := Admin{Email: "ops@example.com", PasswordHash: "$2a$10$secret"}
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("password hash leaked into JSON: %s", data)
	}
}

func TestProviderServes(t *testing.T) {
	p := &Provider{
		Name: "openai",
		Models: []ModelSpec{
			{Name: "gpt-4o", Endpoint: "/v1/chat/completions"},
			{Name: "tts-1", Endpoint: "/v1/audio/speech"},
		},
	}

	if !p.Serves("gpt-4o", "/v1/chat/completions") {
		t.Error("expected gpt-4o to be served on chat completions")
	}
	if p.Serves("gpt-4o", "/v1/audio/speech") {
		t.Error("gpt-4o must not be served on the audio endpoint")
	}
	if p.Serves("nope", "/v1/chat/completions") {
		t.Error("unknown model must not be served")
	}
	if !p.HasModel("tts-1") || p.HasModel("nope") {
		t.Error("HasModel mismatch")
	}
}

func TestNewListResponse(t *testing.T) {
	resp := NewListResponse(nil)
	if resp.Object != "list" || resp.Count != 0 || resp.Data == nil {
		t.Errorf("empty list envelope: %+v", resp)
	}

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"data":[]`) {
		t.Errorf("empty list must serialize as [], got %s", data)
	}
}
