package stac

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oliveagle/jsonpath"

	"stac-validator/types/cassette"
	"stac-validator/types/config"
	"stac-validator/types/dataclasses"
	"stac-validator/types/fetcher"
	"stac-validator/types/helpers"
	"stac-validator/types/observability"
	"stac-validator/types/resolver"
	"stac-validator/types/validators"
)

const entityType = "validation"

// Options select what a validation run checks.
type Options struct {
	// Mode is one of default, core, extensions or custom.
	Mode         dataclasses.ValidationMethod `json:"mode"`
	CustomSchema string                       `json:"custom_schema"`
	Recursive    bool                         `json:"recursive"`
	// MaxDepth limits how many link levels below the root a recursive run
	// follows. Zero or less means unlimited.
	MaxDepth    int  `json:"max_depth"`
	Links       bool `json:"links"`
	Assets      bool `json:"assets"`
	Concurrency int  `json:"concurrency"`
	Verbose     bool `json:"verbose"`
}

func DefaultOptions(validationConfig config.ValidationConfig) Options {
	return Options{
		Mode:        dataclasses.ValidationMethodDefault,
		MaxDepth:    validationConfig.MaxDepth,
		Links:       validationConfig.Links,
		Assets:      validationConfig.Assets,
		Concurrency: validationConfig.Concurrency,
	}
}

func (o Options) Check() error {
	switch o.Mode {
	case dataclasses.ValidationMethodDefault,
		dataclasses.ValidationMethodCore,
		dataclasses.ValidationMethodExtensions:
	case dataclasses.ValidationMethodCustom:
		if o.CustomSchema == "" {
			return errors.New("custom mode requires a custom schema")
		}
	default:
		return fmt.Errorf("unknown validation mode %q", o.Mode)
	}
	return nil
}

// Validator validates STAC objects against their core and extension schemas.
type Validator struct {
	schemasConfig *config.SchemasConfig
	loader        *Loader
	schemas       *validators.JSONSchemaValidator
}

func NewValidator(
	schemasConfig *config.SchemasConfig,
	loader *Loader,
	schemas *validators.JSONSchemaValidator,
) *Validator {
	return &Validator{
		schemasConfig: schemasConfig,
		loader:        loader,
		schemas:       schemas,
	}
}

// Supports reports whether the validator can read location at all.
func (v *Validator) Supports(location string) bool {
	return v.loader.Supports(location)
}

// Validate loads the object at location and validates it, and in recursive
// mode everything it links to as child or item.
func (v *Validator) Validate(ctx context.Context, location string, options Options) *dataclasses.Report {
	run := v.newRun(location, options)

	object, err := v.loader.Load(ctx, location)
	if err != nil {
		run.loadFailed(location, err)
	} else {
		run.visit(ctx, object, 0)
	}

	return run.finish()
}

// ValidateDocument validates an object that was not loaded by the
// validator. location names it and anchors its relative links.
func (v *Validator) ValidateDocument(ctx context.Context, location string, raw []byte, options Options) *dataclasses.Report {
	run := v.newRun(location, options)

	object, err := dataclasses.NewStacObject(location, raw)
	if err != nil {
		run.loadFailed(location, err)
	} else {
		run.visit(ctx, object, 0)
	}

	return run.finish()
}

type run struct {
	validator *Validator
	options   Options
	report    *dataclasses.Report
	logger    echo.Logger
	buffer    *config.SafeBuffer
	visited   map[string]bool
	started   time.Time
}

func (v *Validator) newRun(location string, options Options) *run {
	if options.Mode == "" {
		options.Mode = dataclasses.ValidationMethodDefault
	}
	if options.Concurrency <= 0 {
		options.Concurrency = 1
	}

	report := dataclasses.NewReport(location)
	logger, buffer := config.GetLoggerForEntity(entityType, report.Id)
	logger.Infof("Validating %s (mode %s, recursive %t)", location, options.Mode, options.Recursive)

	return &run{
		validator: v,
		options:   options,
		report:    report,
		logger:    logger,
		buffer:    buffer,
		visited:   make(map[string]bool),
		started:   time.Now(),
	}
}

func (r *run) method() dataclasses.ValidationMethod {
	if r.options.Recursive {
		return dataclasses.ValidationMethodRecursive
	}
	return r.options.Mode
}

func (r *run) finish() *dataclasses.Report {
	duration := time.Since(r.started)
	observability.RecordValidationRun(duration)

	r.logger.Infof(
		"Validated %s: %d objects, valid %t in %s",
		r.report.Input, len(r.report.GetMessages()), r.report.IsValid(), duration.Round(time.Millisecond),
	)

	logs := ""
	if r.options.Verbose {
		logs = r.buffer.String()
	}
	r.report.Finish(logs)
	config.ReleaseLoggerForEntity(entityType, r.report.Id)

	return r.report
}

func (r *run) loadFailed(location string, err error) {
	message := dataclasses.NewValidationMessage(location, r.method())
	errorType := ClassifyError(err)
	message.Fail(errorType, err.Error())
	message.Recommendation = recommendation(errorType)

	r.logger.Errorf("%s: %v", location, err)
	r.report.AddMessage(message)
}

func (r *run) visit(ctx context.Context, object *dataclasses.StacObject, depth int) {
	r.visited[helpers.NormalizeLocation(object.Path)] = true

	if object.Type == dataclasses.StacTypeItemCollection {
		for _, feature := range r.features(object) {
			r.report.AddMessage(r.validateObject(ctx, feature))
		}
		return
	}

	message := r.validateObject(ctx, object)
	r.report.AddMessage(message)

	if !r.options.Recursive {
		return
	}
	if !message.ValidStac {
		r.logger.Warnf("Not following the links of invalid %s", object.Path)
		return
	}
	if r.options.MaxDepth > 0 && depth >= r.options.MaxDepth {
		return
	}

	for _, href := range childLinks(object) {
		if err := ctx.Err(); err != nil {
			r.loadFailed(href, err)
			return
		}

		location := helpers.ResolveLocation(object.Path, href)
		if r.visited[helpers.NormalizeLocation(location)] {
			continue
		}

		child, err := r.validator.loader.Load(ctx, location)
		if err != nil {
			r.visited[helpers.NormalizeLocation(location)] = true
			r.loadFailed(location, err)
			continue
		}
		r.visit(ctx, child, depth+1)
	}
}

// features splits an item collection into items located at
// "<path>#/features/<index>".
func (r *run) features(object *dataclasses.StacObject) []*dataclasses.StacObject {
	found, err := jsonpath.JsonPathLookup(object.Data, "$.features[*]")
	if err != nil {
		r.logger.Warnf("%s has no features: %v", object.Path, err)
		return nil
	}
	values, _ := found.([]interface{})

	features := make([]*dataclasses.StacObject, 0, len(values))
	for index, value := range values {
		path := fmt.Sprintf("%s#/features/%d", object.Path, index)

		data, ok := value.(map[string]interface{})
		if !ok {
			r.loadFailed(path, fmt.Errorf("%w: feature is not an object", dataclasses.ErrInvalidStacObject))
			continue
		}

		feature, err := dataclasses.NewStacObjectFromData(path, nil, data)
		if err != nil {
			r.loadFailed(path, err)
			continue
		}
		if feature.Version == "" {
			feature.Version = object.Version
		}
		features = append(features, feature)
	}
	return features
}

// childLinks returns the hrefs of the child and item links of object.
func childLinks(object *dataclasses.StacObject) []string {
	hrefs := make([]string, 0)
	for _, link := range links(object) {
		rel, _ := helpers.GetValue[string](link, "rel")
		href, _ := helpers.GetValue[string](link, "href")
		if href != "" && (rel == "child" || rel == "item") {
			hrefs = append(hrefs, href)
		}
	}
	return hrefs
}

func links(object *dataclasses.StacObject) []map[string]interface{} {
	found, err := jsonpath.JsonPathLookup(object.Data, "$.links[*]")
	if err != nil {
		return nil
	}
	values, _ := found.([]interface{})

	result := make([]map[string]interface{}, 0, len(values))
	for _, value := range values {
		if link, ok := value.(map[string]interface{}); ok {
			result = append(result, link)
		}
	}
	return result
}

// schemasFor lists the schemas object is checked against in the run's mode.
func (r *run) schemasFor(object *dataclasses.StacObject) ([]string, error) {
	schemasConfig := r.validator.schemasConfig
	base := helpers.StripFragment(object.Path)

	if r.options.Mode == dataclasses.ValidationMethodCustom {
		return []string{helpers.ResolveLocation(base, r.options.CustomSchema)}, nil
	}

	schemas := make([]string, 0, len(object.Extensions)+1)
	if r.options.Mode != dataclasses.ValidationMethodExtensions {
		core, err := CoreSchemaURL(schemasConfig, object.Version, object.SchemaType())
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, core)
	}

	if r.options.Mode != dataclasses.ValidationMethodCore {
		for _, extension := range object.Extensions {
			schema, err := ExtensionSchemaURL(schemasConfig, extension, object.Version, base)
			if err != nil {
				return nil, fmt.Errorf("extension %q: %w", extension, err)
			}
			schemas = append(schemas, schema)
		}
	}

	return schemas, nil
}

func (r *run) validateObject(ctx context.Context, object *dataclasses.StacObject) dataclasses.ValidationMessage {
	message := dataclasses.NewValidationMessage(object.Path, r.method())
	message.Version = object.Version
	message.AssetType = strings.ToUpper(string(object.Type))

	schemas, err := r.schemasFor(object)
	if err != nil {
		message.Fail(dataclasses.ErrorTypeSchema, err.Error())
		message.Recommendation = recommendation(dataclasses.ErrorTypeSchema)
	}

	for _, schema := range schemas {
		message.Schema = append(message.Schema, schema)

		validationErrors, err := r.validator.schemas.Validate(ctx, schema, object.Raw)
		if err != nil {
			errorType := ClassifyError(err)
			r.logger.Errorf("%s: schema %s: %v", object.Path, schema, err)
			if message.ValidStac {
				message.Recommendation = recommendation(errorType)
			}
			message.Fail(errorType, err.Error())
			continue
		}

		if len(validationErrors) > 0 {
			first := validationErrors[0]
			if message.ValidStac {
				message.Recommendation = recommendation(dataclasses.ErrorTypeValidation)
			}
			message.Fail(
				dataclasses.ErrorTypeValidation,
				fmt.Sprintf("%s: %s (schema %s)", first.Field, first.Description, schema),
			)
			message.ValidationErrors = append(message.ValidationErrors, validationErrors...)
		}
	}

	if r.options.Links {
		message.LinksValidated = r.checkLinks(ctx, object)
	}
	if r.options.Assets {
		message.AssetsValidated = r.checkAssets(ctx, object)
	}

	observability.RecordValidation(string(object.Type), message.ValidStac)
	if message.ValidStac {
		r.logger.Infof("%s is a valid %s", object.Path, object.Type)
	} else {
		r.logger.Warnf("%s is not a valid %s: %s", object.Path, object.Type, message.ErrorMessage)
	}

	return message
}

// ClassifyError maps loading and schema errors to report error types.
func ClassifyError(err error) dataclasses.ErrorType {
	var mismatch *dataclasses.IDMismatchError
	var refError *resolver.RefError
	var fetchError *fetcher.FetchError

	switch {
	case errors.As(err, &mismatch):
		return dataclasses.ErrorTypeIDMismatch
	case errors.As(err, &refError):
		return dataclasses.ErrorTypeRefResolution
	case errors.As(err, &fetchError),
		errors.Is(err, cassette.ErrInteractionNotFound),
		errors.Is(err, fetcher.ErrUnsupportedScheme),
		errors.Is(err, os.ErrNotExist):
		return dataclasses.ErrorTypeFetch
	case errors.Is(err, dataclasses.ErrInvalidStacObject),
		errors.Is(err, dataclasses.ErrInvalidSchemaDocument):
		return dataclasses.ErrorTypeJSONDecode
	case errors.Is(err, dataclasses.ErrUnknownStacType):
		return dataclasses.ErrorTypeUnknownType
	}
	return dataclasses.ErrorTypeSchema
}

func recommendation(errorType dataclasses.ErrorType) string {
	switch errorType {
	case dataclasses.ErrorTypeValidation:
		return "Every violation is listed in validation_errors."
	case dataclasses.ErrorTypeFetch:
		return "Check that the location is reachable and spelled correctly."
	case dataclasses.ErrorTypeRefResolution:
		return "A $ref of the schema cannot be followed, check the documents it points to."
	case dataclasses.ErrorTypeIDMismatch:
		return "The schema $id does not match where it was fetched from. Disable strict_ids to accept it."
	case dataclasses.ErrorTypeJSONDecode:
		return "The document is not a JSON object."
	case dataclasses.ErrorTypeUnknownType:
		return "Set type to Feature, FeatureCollection, Collection or Catalog."
	}
	return "Check stac_version, stac_extensions and the custom schema location."
}
