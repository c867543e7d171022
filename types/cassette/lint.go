package cassette

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"stac-validator/types/helpers"
)

type IssueKind string

const (
	IssueInvalidJSON      IssueKind = "invalid_json"
	IssueInvalidSchema    IssueKind = "invalid_schema"
	IssueUnresolvedRef    IssueKind = "unresolved_ref"
	IssueIDMismatch       IssueKind = "id_mismatch"
	IssueConflictingBody  IssueKind = "conflicting_body"
	IssueUnexpectedStatus IssueKind = "unexpected_status"
)

type Issue struct {
	Index   int       `json:"index"`
	Method  string    `json:"method"`
	URI     string    `json:"uri"`
	Kind    IssueKind `json:"kind"`
	Message string    `json:"message"`
}

type LintReport struct {
	Checked int     `json:"checked"`
	Issues  []Issue `json:"issues"`
}

func (r *LintReport) Valid() bool {
	return len(r.Issues) == 0
}

func (r *LintReport) add(index int, interaction *Interaction, kind IssueKind, format string, args ...interface{}) {
	r.Issues = append(r.Issues, Issue{
		Index:   index,
		Method:  interaction.Request.Method,
		URI:     interaction.Request.URI,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

// Lint checks that every recorded response is a draft-07 JSON Schema whose
// $id names the URI it was recorded for, and that a URI never maps to two
// different bodies. Cross references are resolved from the cassette only.
func Lint(cassette *Cassette) *LintReport {
	report := &LintReport{Issues: make([]Issue, 0)}
	interactions := cassette.GetInteractions()

	// URI -> body, for the compiler's loader
	recorded := make(map[string]string)
	seen := make(map[string]string)
	schemas := make([]int, 0, len(interactions))

	for index, interaction := range interactions {
		report.Checked++
		key := strings.ToUpper(interaction.Request.Method) + " " + interaction.Request.URI

		if body, found := seen[key]; found {
			if body != interaction.Response.Body {
				report.add(index, interaction, IssueConflictingBody, "recorded twice with different bodies")
			}
			continue
		}
		seen[key] = interaction.Response.Body

		code := interaction.Response.Status.Code
		if code < http.StatusOK || code >= http.StatusMultipleChoices {
			report.add(index, interaction, IssueUnexpectedStatus, "status %d", code)
			continue
		}

		var document interface{}
		if err := json.Unmarshal([]byte(interaction.Response.Body), &document); err != nil {
			report.add(index, interaction, IssueInvalidJSON, "%v", err)
			continue
		}

		if object, ok := document.(map[string]interface{}); ok {
			if id, ok := object["$id"].(string); ok && id != "" {
				if helpers.StripFragment(id) != helpers.StripFragment(interaction.Request.URI) {
					report.add(index, interaction, IssueIDMismatch, "$id is %s", id)
				}
			}
		}

		recorded[helpers.StripFragment(interaction.Request.URI)] = interaction.Response.Body
		schemas = append(schemas, index)
	}

	for _, index := range schemas {
		interaction := interactions[index]
		if kind, err := compileRecorded(recorded, helpers.StripFragment(interaction.Request.URI)); err != nil {
			report.add(index, interaction, kind, "%v", err)
		}
	}

	return report
}

func compileRecorded(recorded map[string]string, uri string) (IssueKind, error) {
	unresolved := make([]string, 0)

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft7
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if body, found := recorded[helpers.StripFragment(url)]; found {
			return io.NopCloser(strings.NewReader(body)), nil
		}
		unresolved = append(unresolved, url)
		return nil, fmt.Errorf("%s was not recorded", url)
	}

	if err := compiler.AddResource(uri, strings.NewReader(recorded[uri])); err != nil {
		return IssueInvalidSchema, err
	}

	if _, err := compiler.Compile(uri); err != nil {
		if len(unresolved) > 0 {
			return IssueUnresolvedRef, fmt.Errorf("references %s which is not in the cassette", strings.Join(unresolved, ", "))
		}
		return IssueInvalidSchema, err
	}

	return "", nil
}
