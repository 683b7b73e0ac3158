package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/solarpro/erp/pkg/settings"
)

var (
	// ErrBusy is returned when Submit or Load is called while a submit is in flight
	ErrBusy = errors.New("editor: submit already in progress")

	// ErrNotLoaded is returned by Submit before the first successful Load
	ErrNotLoaded = errors.New("editor: items not loaded")
)

// Backend lists and creates settings records
type Backend interface {
	List(ctx context.Context, kind settings.Kind) ([]map[string]any, error)
	Create(ctx context.Context, kind settings.Kind, fields map[string]any) (map[string]any, error)
}

// State is the submit state of an editor
type State int

const (
	StateIdle State = iota
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ValidationError is a form check that failed before reaching the backend
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is a *ValidationError
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// configField holds the JSON object text of workflow and form rows
const configField = "config"

// Editor is the list-and-create controller for one settings kind
type Editor struct {
	kind     settings.Kind
	backend  Backend
	required []string

	mu     sync.Mutex
	state  State
	loaded bool
	items  []map[string]any
	form   map[string]any
	err    error
}

func newEditor(kind settings.Kind, backend Backend, required ...string) *Editor {
	e := &Editor{
		kind:     kind,
		backend:  backend,
		required: required,
	}
	e.form = e.blankForm()
	return e
}

// NewRoleEditor edits roles. Requires name.
func NewRoleEditor(backend Backend) *Editor {
	return newEditor(settings.KindRole, backend, "name")
}

// NewPermissionEditor edits permissions. Requires role_name, module and action.
func NewPermissionEditor(backend Backend) *Editor {
	return newEditor(settings.KindPermission, backend, "role_name", "module", "action")
}

// NewWorkflowEditor edits workflows. Requires name and a JSON object config.
func NewWorkflowEditor(backend Backend) *Editor {
	return newEditor(settings.KindWorkflow, backend, "name")
}

// NewFormEditor edits forms. Requires name and a JSON object config.
func NewFormEditor(backend Backend) *Editor {
	return newEditor(settings.KindForm, backend, "name")
}

// NewLanguageEditor edits languages. Requires code and name.
func NewLanguageEditor(backend Backend) *Editor {
	return newEditor(settings.KindLanguage, backend, "code", "name")
}

// New returns the editor for kind
func New(kind settings.Kind, backend Backend) (*Editor, error) {
	switch kind {
	case settings.KindRole:
		return NewRoleEditor(backend), nil
	case settings.KindPermission:
		return NewPermissionEditor(backend), nil
	case settings.KindWorkflow:
		return NewWorkflowEditor(backend), nil
	case settings.KindForm:
		return NewFormEditor(backend), nil
	case settings.KindLanguage:
		return NewLanguageEditor(backend), nil
	}
	return nil, &settings.InvalidKindError{Kind: string(kind)}
}

// Kind returns the settings kind being edited
func (e *Editor) Kind() settings.Kind {
	return e.kind
}

// Fields returns the required form fields, plus config for kinds that carry one
func (e *Editor) Fields() []string {
	fields := append([]string(nil), e.required...)
	if e.kind.HasConfig() {
		fields = append(fields, configField)
	}
	return fields
}

func (e *Editor) blankForm() map[string]any {
	form := map[string]any{}
	if e.kind.HasConfig() {
		form[configField] = "{}"
	}
	return form
}

// State returns the current submit state
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the failure of the last Load or Submit, or nil
func (e *Editor) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Items returns a copy of the loaded records
func (e *Editor) Items() []map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]map[string]any, len(e.items))
	copy(out, e.items)
	return out
}

// Form returns a copy of the pending form values
func (e *Editor) Form() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyFields(e.form)
}

// Set edits one form field
func (e *Editor) Set(field string, value any) {
	e.mu.Lock()
	e.form[field] = value
	e.mu.Unlock()
}

// Reset clears the form
func (e *Editor) Reset() {
	e.mu.Lock()
	e.form = e.blankForm()
	e.mu.Unlock()
}

// Load fetches the current records from the backend
func (e *Editor) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateSubmitting {
		e.mu.Unlock()
		return ErrBusy
	}
	e.mu.Unlock()

	items, err := e.backend.List(ctx, e.kind)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.err = err
		return err
	}
	e.items = append([]map[string]any(nil), items...)
	e.loaded = true
	e.err = nil
	return nil
}

// Submit validates the form and creates the record. On success the record
// is appended to Items and the form cleared; on failure both are kept.
func (e *Editor) Submit(ctx context.Context) (map[string]any, error) {
	e.mu.Lock()
	if e.state == StateSubmitting {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	if !e.loaded {
		e.err = ErrNotLoaded
		e.mu.Unlock()
		return nil, ErrNotLoaded
	}
	payload, err := e.payload()
	if err != nil {
		e.err = err
		e.mu.Unlock()
		return nil, err
	}
	e.state = StateSubmitting
	e.mu.Unlock()

	created, err := e.backend.Create(ctx, e.kind, payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateIdle
	if err != nil {
		e.err = err
		return nil, err
	}
	e.items = append(e.items, created)
	e.form = e.blankForm()
	e.err = nil
	return created, nil
}

// payload checks the form and returns the fields to send. Caller holds mu.
func (e *Editor) payload() (map[string]any, error) {
	for _, field := range e.required {
		if blank(e.form[field]) {
			return nil, &ValidationError{Field: field, Reason: "is required"}
		}
	}

	out := copyFields(e.form)
	if e.kind.HasConfig() {
		config, err := settings.ParseConfig(e.form[configField])
		if err != nil {
			return nil, &ValidationError{Field: configField, Reason: "must be a JSON object"}
		}
		out[configField] = config
	}
	return out, nil
}

func blank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func copyFields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
