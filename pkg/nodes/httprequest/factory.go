package httprequest

import (
	"context"
	"net/http"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/schema"
)

// HTTPRequestNodeFactory creates HTTPRequestNode instances.
type HTTPRequestNodeFactory struct{}

func (f *HTTPRequestNodeFactory) Create(ctx context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewHTTPRequestNode(id, config)
}

func (f *HTTPRequestNodeFactory) ID() string {
	return "httprequest"
}

func (f *HTTPRequestNodeFactory) Name() string {
	return "HTTP Request"
}

func (f *HTTPRequestNodeFactory) Description() string {
	return "Performs an HTTP request with templated URL, headers and body"
}

func (f *HTTPRequestNodeFactory) Properties() []schema.PropertySpec {
	return []schema.PropertySpec{
		{
			Name:        "url",
			Kind:        models.KindString,
			Required:    true,
			Description: "Request URL, with template support, e.g. https://api.example.com/users/{{.vars.user_id}}",
		},
		{
			Name:    "method",
			Kind:    models.KindString,
			Default: http.MethodGet,
			Choices: []any{
				http.MethodGet, http.MethodPost, http.MethodPut,
				http.MethodPatch, http.MethodDelete, http.MethodHead,
			},
			Description: "HTTP method",
		},
		{
			Name:        "headers",
			Kind:        models.KindMapping,
			Description: "Request headers; values support templating",
		},
		{
			Name:        "body",
			Kind:        models.KindString,
			Description: "Request body template",
		},
	}
}

// NewHTTPRequestNodeFactory creates a new factory instance.
func NewHTTPRequestNodeFactory() protocol.NodeFactory {
	return &HTTPRequestNodeFactory{}
}
