package graphql

import (
	"github.com/graphql-go/graphql"

	"github.com/0xmhha/token-screener/pkg/token"
)

// Custom scalars are carried as strings to keep 256-bit and 64-bit values exact
var (
	bigIntType  = graphql.String
	addressType = graphql.String
	timeType    = graphql.String
)

var (
	tokenType       *graphql.Object
	tokenFilterType *graphql.InputObject
	sortKeyEnumType *graphql.Enum
)

func init() {
	initTokenTypes()
}

func initTokenTypes() {
	sortKeyEnumType = graphql.NewEnum(graphql.EnumConfig{
		Name:        "TokenSort",
		Description: "Ordering of token query results",
		Values: graphql.EnumValueConfigMap{
			"NAME_ASC":          &graphql.EnumValueConfig{Value: string(token.SortNameAsc)},
			"NAME_DESC":         &graphql.EnumValueConfig{Value: string(token.SortNameDesc)},
			"DATE_CREATED_ASC":  &graphql.EnumValueConfig{Value: string(token.SortDateCreatedAsc)},
			"DATE_CREATED_DESC": &graphql.EnumValueConfig{Value: string(token.SortDateCreatedDesc)},
		},
	})

	tokenType = graphql.NewObject(graphql.ObjectConfig{
		Name:        "Token",
		Description: "Screening record for one token contract",
		Fields: graphql.Fields{
			"contractAddress": &graphql.Field{Type: graphql.NewNonNull(addressType)},
			"name":            &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"symbol":          &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"decimals":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"totalSupply": &graphql.Field{
				Type:        graphql.NewNonNull(bigIntType),
				Description: "Total supply in base units, decimal string",
			},
			"owner":   &graphql.Field{Type: addressType},
			"creator": &graphql.Field{Type: addressType},

			"isVerified":  &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"isRenounced": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"isActive":    &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"isV3":        &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"isScam":      &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"isRugPull":   &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"isDumpRisk":  &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},

			"retryCount":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"previousContracts": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},

			"liquidityPoolAddress": &graphql.Field{Type: addressType},
			"liquidityPeriod":      &graphql.Field{Type: graphql.NewNonNull(bigIntType)},
			"initialLiquidity":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"currentLiquidity":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"isLiquidityLocked":    &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"lockedLiquidity":      &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},

			"isTaxModifiable": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"sellTax":         &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"buyTax":          &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			"transferTax":     &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},

			"score":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"holdersCount": &graphql.Field{Type: graphql.NewNonNull(bigIntType)},

			"abi": &graphql.Field{
				Type:        graphql.String,
				Description: "Canonical ABI JSON, present once the source is verified",
			},
			"error": &graphql.Field{Type: graphql.String},

			"dateCreated": &graphql.Field{Type: graphql.NewNonNull(timeType)},
			"dateUpdated": &graphql.Field{Type: timeType},
		},
	})

	tokenFilterType = graphql.NewInputObject(graphql.InputObjectConfig{
		Name: "TokenFilter",
		Fields: graphql.InputObjectConfigFieldMap{
			"name":            &graphql.InputObjectFieldConfig{Type: graphql.String, Description: "Case-insensitive substring"},
			"symbol":          &graphql.InputObjectFieldConfig{Type: graphql.String, Description: "Case-insensitive substring"},
			"contractAddress": &graphql.InputObjectFieldConfig{Type: addressType},
			"isVerified":      &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
			"isRenounced":     &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
			"isActive":        &graphql.InputObjectFieldConfig{Type: graphql.Boolean},
			"fromDate":        &graphql.InputObjectFieldConfig{Type: timeType, Description: "RFC 3339 lower bound on dateCreated"},
			"toDate":          &graphql.InputObjectFieldConfig{Type: timeType, Description: "RFC 3339 upper bound on dateCreated"},
		},
	})
}
