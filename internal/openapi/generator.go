package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/crusont/crusont/internal/model"
)

// GenerateSpec builds an OpenAPI 3.1 document for the gateway's public
// surface: key management, the model catalog, and the inference
// endpoints currently routable given the provider registry.
func GenerateSpec(baseURL string, models []model.ModelSpec) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Crusont API",
			Description: "AI gateway: API key management and request forwarding to upstream providers.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:   "http",
			Scheme: "bearer",
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{"bearerAuth": {}},
	}

	doc.Paths = openapi3.NewPaths()

	// Shared error shape
	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"detail": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}

	doc.Components.Schemas["APIKey"] = apiKeySchema()
	doc.Components.Schemas["Model"] = modelSchema()

	addKeyPaths(doc)
	addModelPath(doc)
	addForwardPaths(doc, models)

	return doc
}

// ─── Component Schemas ──────────────────────────────────────────────────────

func apiKeySchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":         &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "uuid"}},
				"name":       &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"key":        &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: "Masked form; the full secret is only returned at creation."}},
				"created_at": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
				"last_used":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer", "null"}, Format: "int64"}},
			},
		},
	}
}

func modelSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"id":       &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"object":   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"endpoint": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}
}

// listSchema wraps an item schema in the standard list envelope.
func listSchema(itemRef string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"object": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"data": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: openapi3.NewSchemaRef(itemRef, nil),
					},
				},
				"count": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}},
			},
		},
	}
}

// ─── Paths ──────────────────────────────────────────────────────────────────

func addKeyPaths(doc *openapi3.T) {
	keyRef := "#/components/schemas/APIKey"

	createBody := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:     &openapi3.Types{"object"},
			Required: []string{"name"},
			Properties: openapi3.Schemas{
				"name": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
			},
		},
	}

	doc.Paths.Set("/v1/keys", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "List the caller's API keys",
			OperationID: "listKeys",
			Responses:   newResponses("200", "Keys owned by the authenticated user.", listSchema(keyRef)),
		},
		Post: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Create a new API key",
			OperationID: "createKey",
			RequestBody: &openapi3.RequestBodyRef{
				Value: &openapi3.RequestBody{
					Description: "Label for the new key.",
					Required:    true,
					Content:     openapi3.NewContentWithJSONSchemaRef(createBody),
				},
			},
			Responses: newResponses("201", "The new key, with its full secret shown once.", openapi3.NewSchemaRef(keyRef, nil)),
		},
	})

	deletedSchema := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"object":  &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"id":      &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
				"deleted": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}},
			},
		},
	}

	doc.Paths.Set("/v1/keys/{keyID}", &openapi3.PathItem{
		Delete: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Revoke an API key",
			OperationID: "deleteKey",
			Parameters: openapi3.Parameters{
				&openapi3.ParameterRef{
					Value: openapi3.NewPathParameter("keyID").
						WithDescription("ID of the key to revoke.").
						WithSchema(openapi3.NewStringSchema()),
				},
			},
			Responses: newResponses("200", "Deletion confirmation.", deletedSchema),
		},
	})
}

func addModelPath(doc *openapi3.T) {
	doc.Paths.Set("/v1/models", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"models"},
			Summary:     "List routable models",
			OperationID: "listModels",
			Responses:   newResponses("200", "Models served by active providers.", listSchema("#/components/schemas/Model")),
		},
	})
}

// addForwardPaths documents one POST path per inference endpoint. The
// request schema is open-ended since bodies pass through to the
// upstream unmodified, but the currently routable model names are
// enumerated for discoverability.
func addForwardPaths(doc *openapi3.T, models []model.ModelSpec) {
	byEndpoint := map[string][]string{}
	for _, m := range models {
		byEndpoint[m.Endpoint] = append(byEndpoint[m.Endpoint], m.Name)
	}

	endpoints := []struct {
		path        string
		summary     string
		operationID string
	}{
		{"/v1/chat/completions", "Create a chat completion", "createChatCompletion"},
		{"/v1/embeddings", "Create embeddings", "createEmbeddings"},
		{"/v1/moderations", "Classify content", "createModeration"},
		{"/v1/images/generations", "Generate images", "createImage"},
		{"/v1/audio/speech", "Synthesize speech", "createSpeech"},
		{"/v1/text/translations", "Translate text", "createTextTranslation"},
	}

	for _, ep := range endpoints {
		modelProp := openapi3.NewStringSchema()
		for _, name := range byEndpoint[ep.path] {
			modelProp.Enum = append(modelProp.Enum, name)
		}

		reqSchema := &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:     &openapi3.Types{"object"},
				Required: []string{"model"},
				Properties: openapi3.Schemas{
					"model": &openapi3.SchemaRef{Value: modelProp},
				},
			},
		}

		doc.Paths.Set(ep.path, &openapi3.PathItem{
			Post: &openapi3.Operation{
				Tags:        []string{"inference"},
				Summary:     ep.summary,
				OperationID: ep.operationID,
				RequestBody: &openapi3.RequestBodyRef{
					Value: &openapi3.RequestBody{
						Description: "Forwarded verbatim to the upstream provider.",
						Required:    true,
						Content:     openapi3.NewContentWithJSONSchemaRef(reqSchema),
					},
				},
				Responses: newResponses("200", "The upstream provider's response, passed through.", &openapi3.SchemaRef{
					Value: &openapi3.Schema{Type: &openapi3.Types{"object"}},
				}),
			},
		})
	}
}

// ─── Response Helpers ───────────────────────────────────────────────────────

// newResponses builds a Responses map with a success response and the
// standard error responses.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)

	badReqDesc := "Bad request"
	responses.Set("400", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &badReqDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	unauthDesc := "Unauthorized"
	responses.Set("401", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unauthDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	notFoundDesc := "Not found"
	responses.Set("404", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &notFoundDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	unavailableDesc := "Service unavailable"
	responses.Set("503", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &unavailableDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	return responses
}
