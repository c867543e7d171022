package interfaces

import (
	"context"

	"stac-validator/types/dataclasses"
	"stac-validator/types/generics"
)

// SchemaRegistry hands out schema documents, fetching each URI at most once
// until Reset is called.
type SchemaRegistry interface {
	generics.Registry[*dataclasses.SchemaDocument]

	Load(ctx context.Context, uri string) (*dataclasses.SchemaDocument, error)
	Add(*dataclasses.SchemaDocument)
	FetchCount(uri string) int

	Reset()
}

type ValidationRegistry interface {
	generics.Registry[*dataclasses.Report]

	Add(*dataclasses.Report) error
}
