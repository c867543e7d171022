package dataclasses

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type ErrorType string

const (
	ErrorTypeNone          ErrorType = ""
	ErrorTypeJSONDecode    ErrorType = "JSONDecodeError"
	ErrorTypeValidation    ErrorType = "ValidationError"
	ErrorTypeFetch         ErrorType = "FetchError"
	ErrorTypeRefResolution ErrorType = "RefResolutionError"
	ErrorTypeSchema        ErrorType = "SchemaError"
	ErrorTypeIDMismatch    ErrorType = "IDMismatchError"
	ErrorTypeUnknownType   ErrorType = "TypeError"
)

type ValidationMethod string

const (
	ValidationMethodDefault    ValidationMethod = "default"
	ValidationMethodCore       ValidationMethod = "core"
	ValidationMethodExtensions ValidationMethod = "extensions"
	ValidationMethodCustom     ValidationMethod = "custom"
	ValidationMethodRecursive  ValidationMethod = "recursive"
)

// ValidationError is a single schema violation.
type ValidationError struct {
	Schema      string `json:"schema"`
	Field       string `json:"field"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// LinkCheckResult groups checked hrefs by outcome.
type LinkCheckResult struct {
	FormatValid    []string `json:"format_valid"`
	FormatInvalid  []string `json:"format_invalid"`
	RequestValid   []string `json:"request_valid"`
	RequestInvalid []string `json:"request_invalid"`
	TypeMismatch   []string `json:"type_mismatch,omitempty"`
}

func NewLinkCheckResult() *LinkCheckResult {
	return &LinkCheckResult{
		FormatValid:    []string{},
		FormatInvalid:  []string{},
		RequestValid:   []string{},
		RequestInvalid: []string{},
	}
}

func (r *LinkCheckResult) Valid() bool {
	return len(r.FormatInvalid) == 0 && len(r.RequestInvalid) == 0 && len(r.TypeMismatch) == 0
}

// ValidationMessage is the outcome for one STAC object.
type ValidationMessage struct {
	Version          string            `json:"version"`
	Path             string            `json:"path"`
	Schema           []string          `json:"schema"`
	ValidStac        bool              `json:"valid_stac"`
	AssetType        string            `json:"asset_type,omitempty"`
	ValidationMethod ValidationMethod  `json:"validation_method"`
	ErrorType        ErrorType         `json:"error_type,omitempty"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	Recommendation   string            `json:"recommendation,omitempty"`
	ValidationErrors []ValidationError `json:"validation_errors,omitempty"`
	LinksValidated   *LinkCheckResult  `json:"links_validated,omitempty"`
	AssetsValidated  *LinkCheckResult  `json:"assets_validated,omitempty"`
}

func NewValidationMessage(path string, method ValidationMethod) ValidationMessage {
	return ValidationMessage{
		Path:             path,
		Schema:           []string{},
		ValidStac:        true,
		ValidationMethod: method,
	}
}

// Fail marks the message invalid. The first failure wins the error fields.
func (m *ValidationMessage) Fail(errorType ErrorType, message string) {
	if m.ValidStac {
		m.ErrorType = errorType
		m.ErrorMessage = message
	}
	m.ValidStac = false
}

// Report collects the messages of one validation run.
type Report struct {
	lock sync.Mutex

	Id         uuid.UUID           `json:"id"`
	Input      string              `json:"input"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Valid      bool                `json:"valid"`
	Messages   []ValidationMessage `json:"messages"`
	Logs       string              `json:"logs,omitempty"`
}

func NewReport(input string) *Report {
	return &Report{
		Id:        uuid.New(),
		Input:     input,
		StartedAt: time.Now(),
		Valid:     true,
		Messages:  make([]ValidationMessage, 0),
	}
}

func (r *Report) GetId() string {
	return r.Id.String()
}

func (r *Report) AddMessage(message ValidationMessage) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.Messages = append(r.Messages, message)
	if !message.ValidStac {
		r.Valid = false
	}
}

func (r *Report) GetMessages() []ValidationMessage {
	r.lock.Lock()
	defer r.lock.Unlock()

	messages := make([]ValidationMessage, len(r.Messages))
	copy(messages, r.Messages)
	return messages
}

func (r *Report) IsValid() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.Valid
}

func (r *Report) Finish(logs string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := time.Now()
	r.FinishedAt = &now
	r.Logs = logs
}

func (r *Report) IsFinished() bool {
	r.lock.Lock()
	defer r.lock.Unlock()

	return r.FinishedAt != nil
}
