// Package graphql serves read queries over stored tokens and the latest
// tokens view.
package graphql

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/graphql-go/graphql"
	"go.uber.org/zap"

	"github.com/0xmhha/token-screener/pkg/token"
)

// Store is the storage read side the schema resolves against
type Store interface {
	Get(ctx context.Context, address common.Address) (*token.Record, error)
	Query(ctx context.Context, q token.Query) ([]token.Record, error)
	Count(ctx context.Context) (int64, error)
}

// LatestTokens is the in-memory latest tokens view
type LatestTokens interface {
	List(ctx context.Context) ([]token.Record, error)
}

// Schema holds the GraphQL schema
type Schema struct {
	schema graphql.Schema
	store  Store
	latest LatestTokens
	logger *zap.Logger
}

// SchemaBuilder helps construct a GraphQL schema using the Builder pattern
type SchemaBuilder struct {
	schema  *Schema
	queries graphql.Fields
}

// NewSchemaBuilder creates a new schema builder
func NewSchemaBuilder(store Store, latest LatestTokens, logger *zap.Logger) *SchemaBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaBuilder{
		schema: &Schema{
			store:  store,
			latest: latest,
			logger: logger,
		},
		queries: make(graphql.Fields),
	}
}

// WithTokenQueries adds token lookup and filtering
func (b *SchemaBuilder) WithTokenQueries() *SchemaBuilder {
	s := b.schema

	b.queries["token"] = &graphql.Field{
		Type: tokenType,
		Args: graphql.FieldConfigArgument{
			"address": &graphql.ArgumentConfig{
				Type: graphql.NewNonNull(addressType),
			},
		},
		Resolve: s.resolveToken,
	}
	b.queries["tokens"] = &graphql.Field{
		Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tokenType))),
		Args: graphql.FieldConfigArgument{
			"filter": &graphql.ArgumentConfig{
				Type: tokenFilterType,
			},
			"sortBy": &graphql.ArgumentConfig{
				Type:         sortKeyEnumType,
				DefaultValue: string(token.SortDateCreatedDesc),
			},
			"limit": &graphql.ArgumentConfig{
				Type:        graphql.Int,
				Description: "Maximum results, defaults to 100 and is capped at 1000",
			},
			"offset": &graphql.ArgumentConfig{
				Type: graphql.Int,
			},
		},
		Resolve: s.resolveTokens,
	}
	b.queries["tokenCount"] = &graphql.Field{
		Type:    graphql.NewNonNull(bigIntType),
		Resolve: s.resolveTokenCount,
	}

	return b
}

// WithLatestQueries adds the latest tokens view
func (b *SchemaBuilder) WithLatestQueries() *SchemaBuilder {
	if b.schema.latest == nil {
		return b
	}
	b.queries["latestTokens"] = &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(tokenType))),
		Description: "Most recently created tokens, newest first",
		Resolve:     b.schema.resolveLatestTokens,
	}
	return b
}

// Build finalizes the schema
func (b *SchemaBuilder) Build() (*Schema, error) {
	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: b.queries,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	b.schema.schema = schema
	return b.schema, nil
}
