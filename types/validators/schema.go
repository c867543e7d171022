package validators

import (
	"net/url"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var onceFormatCheckers sync.Once

// RegisterFormatCheckers adds the formats STAC schemas use that gojsonschema
// checks too strictly for internationalised links.
func RegisterFormatCheckers() {
	onceFormatCheckers.Do(func() {
		gojsonschema.FormatCheckers.Add("iri", IRIFormatChecker{})
		gojsonschema.FormatCheckers.Add("iri-reference", IRIReferenceFormatChecker{})
	})
}

// IRIFormatChecker accepts absolute IRIs, non-ASCII characters included.
type IRIFormatChecker struct{}

func (f IRIFormatChecker) IsFormat(input interface{}) bool {
	str, ok := input.(string)
	if !ok {
		// formats only constrain strings
		return true
	}

	if strings.ContainsAny(str, " \t\n") {
		return false
	}

	parsed, err := url.Parse(str)
	if err != nil {
		return false
	}
	return parsed.IsAbs()
}

// IRIReferenceFormatChecker accepts absolute or relative IRI references.
type IRIReferenceFormatChecker struct{}

func (f IRIReferenceFormatChecker) IsFormat(input interface{}) bool {
	str, ok := input.(string)
	if !ok {
		return true
	}

	if strings.ContainsAny(str, " \t\n") {
		return false
	}

	_, err := url.Parse(str)
	return err == nil
}
