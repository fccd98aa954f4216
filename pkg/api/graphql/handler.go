package graphql

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/graphql-go/graphql"
	graphqlhandler "github.com/graphql-go/handler"
	"go.uber.org/zap"
)

// Handler handles GraphQL requests
type Handler struct {
	schema  *Schema
	handler *graphqlhandler.Handler
	logger  *zap.Logger
}

// NewHandler creates a new GraphQL handler. latest may be nil, in which
// case the latestTokens field is omitted.
func NewHandler(store Store, latest LatestTokens, logger *zap.Logger) (*Handler, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	schema, err := NewSchemaBuilder(store, latest, logger).
		WithTokenQueries().
		WithLatestQueries().
		Build()
	if err != nil {
		return nil, err
	}

	h := graphqlhandler.New(&graphqlhandler.Config{
		Schema:     &schema.schema,
		Pretty:     true,
		GraphiQL:   false,
		Playground: false,
	})

	return &Handler{
		schema:  schema,
		handler: h,
		logger:  schema.logger,
	}, nil
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// PlaygroundHandler serves GraphQL Playground pointed at endpoint
func (h *Handler) PlaygroundHandler(endpoint string) http.HandlerFunc {
	page := fmt.Sprintf(playgroundHTML, endpoint)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
	}
}

const playgroundHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Token Screener GraphQL</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/graphql-playground-react/build/static/css/index.css" />
  <script src="https://cdn.jsdelivr.net/npm/graphql-playground-react/build/static/js/middleware.js"></script>
</head>
<body>
  <div id="root"></div>
  <script>
    window.addEventListener('load', function () {
      GraphQLPlayground.init(document.getElementById('root'), {
        endpoint: '%s',
        settings: { 'request.credentials': 'same-origin' },
      })
    })
  </script>
</body>
</html>
`

// ExecuteQuery executes a GraphQL query (for testing)
func (h *Handler) ExecuteQuery(query string, variables map[string]interface{}) *graphql.Result {
	return graphql.Do(graphql.Params{
		Schema:         h.schema.schema,
		RequestString:  query,
		VariableValues: variables,
	})
}

// ExecuteQueryJSON executes a GraphQL query and returns JSON (for testing)
func (h *Handler) ExecuteQueryJSON(query string, variables map[string]interface{}) ([]byte, error) {
	return json.Marshal(h.ExecuteQuery(query, variables))
}
