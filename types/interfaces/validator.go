package interfaces

import (
	"context"

	"stac-validator/types/dataclasses"
)

// SchemaValidator validates JSON documents against schemas addressed by URI.
type SchemaValidator interface {
	Compile(ctx context.Context, uri string) error
	Validate(ctx context.Context, uri string, document []byte) ([]dataclasses.ValidationError, error)
}
