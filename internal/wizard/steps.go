package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
)

// Backend is the subset of the REST client the steps call.
type Backend interface {
	Create(ctx context.Context, token, path string, body, out any) error
	Update(ctx context.Context, token, path string, body, out any) error
	Upload(ctx context.Context, token, path string, up backend.Upload) (backend.UploadResult, error)
}

// Submission is one form post for a step.
type Submission struct {
	Form  url.Values
	Files []backend.Upload
	// Session identifies the browser session for the transfer gate.
	Session string
}

// Call carries what a step needs to persist itself.
type Call struct {
	Backend  Backend
	Token    string
	Resource string
	Kind     string
	Index    int
	EntityID string
	// Transfer claims the session's single transfer slot. Nil means
	// transfers are not gated.
	Transfer func(ctx context.Context) (release func(), err error)
}

// StepPath is the endpoint a step n > 0 replaces its rows through.
func (c Call) StepPath() string {
	return c.Resource + "/step/" + strconv.Itoa(c.Index) + "/" + url.PathEscape(c.EntityID)
}

// Step is one page of a wizard.
type Step interface {
	Key() string
	Title() string
	// Capture extracts the entered values from a submission.
	Capture(sub Submission) Draft
	// Prepare validates a draft without any I/O and builds the request body.
	Prepare(d Draft, sub Submission) (any, error)
	// Commit persists the body and returns the entity id.
	Commit(ctx context.Context, call Call, body any) (string, error)
}

// Field describes one input of an info step.
type Field struct {
	Name     string
	Label    string
	Type     string // text, textarea, date, email, select, number
	Source   string // option source for selects
	Choices  []Choice
	Required bool
}

// Choice is one fixed select option.
type Choice struct {
	Value string
	Label string
}

// InfoStep is a single-record form. T is the typed request body.
type InfoStep[T any] struct {
	StepKey   string
	StepTitle string
	Fields    []Field
	Build     func(values map[string]string) (T, error)
	Validator *shared.Validator
}

func (s *InfoStep[T]) Key() string   { return s.StepKey }
func (s *InfoStep[T]) Title() string { return s.StepTitle }

// FormFields lists the inputs rendered for the step.
func (s *InfoStep[T]) FormFields() []Field { return s.Fields }

func (s *InfoStep[T]) Capture(sub Submission) Draft {
	d := Draft{Fields: make(map[string]string, len(s.Fields))}
	for _, f := range s.Fields {
		d.Fields[f.Name] = strings.TrimSpace(sub.Form.Get(f.Name))
	}
	return d
}

func (s *InfoStep[T]) Prepare(d Draft, _ Submission) (any, error) {
	body, err := s.Build(d.Fields)
	if err != nil {
		return nil, err
	}
	if s.Validator != nil {
		if err := s.Validator.Struct(body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// Commit creates the entity on step 0, upserts it once the id exists and
// replaces step data on later steps.
func (s *InfoStep[T]) Commit(ctx context.Context, call Call, body any) (string, error) {
	var ref entityRef
	switch {
	case call.Index > 0:
		if err := call.Backend.Update(ctx, call.Token, call.StepPath(), body, nil); err != nil {
			return "", err
		}
		return call.EntityID, nil
	case call.EntityID == "":
		if err := call.Backend.Create(ctx, call.Token, call.Resource, body, &ref); err != nil {
			return "", err
		}
		if ref.ID == "" {
			return "", fmt.Errorf("wizard: create %s: response carried no id", call.Resource)
		}
		return ref.ID, nil
	default:
		path := call.Resource + "/" + url.PathEscape(call.EntityID)
		if err := call.Backend.Update(ctx, call.Token, path, body, &ref); err != nil {
			return "", err
		}
		if ref.ID == "" {
			return call.EntityID, nil
		}
		return ref.ID, nil
	}
}

// entityRef accepts both string and numeric ids.
type entityRef struct {
	ID string
}

func (e *entityRef) UnmarshalJSON(b []byte) error {
	var raw struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if len(raw.ID) == 0 || string(raw.ID) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.ID, &s); err == nil {
		e.ID = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw.ID, &n); err != nil {
		return fmt.Errorf("wizard: unexpected id %s", raw.ID)
	}
	e.ID = n.String()
	return nil
}

// Column describes one cell of a line item row.
type Column struct {
	Name     string
	Label    string
	Required bool
	Amount   bool
	Date     bool
	Source   string
	Choices  []Choice
}

// LineItemStep edits a list of child rows that replace the entity's rows
// of this kind wholesale. R is the typed row.
type LineItemStep[R any] struct {
	StepKey   string
	StepTitle string
	Columns   []Column
	Build     func(cells map[string]string) (R, error)
}

func (s *LineItemStep[R]) Key() string   { return s.StepKey }
func (s *LineItemStep[R]) Title() string { return s.StepTitle }

// RowColumns lists the cells of one row.
func (s *LineItemStep[R]) RowColumns() []Column { return s.Columns }

// Capture reads index-aligned repeated fields, one value per row.
func (s *LineItemStep[R]) Capture(sub Submission) Draft {
	n := 0
	for _, c := range s.Columns {
		if l := len(sub.Form[c.Name]); l > n {
			n = l
		}
	}
	d := Draft{Rows: make([]map[string]string, 0, n)}
	for i := 0; i < n; i++ {
		row := make(map[string]string, len(s.Columns))
		blank := true
		for _, c := range s.Columns {
			vals := sub.Form[c.Name]
			v := ""
			if i < len(vals) {
				v = strings.TrimSpace(vals[i])
			}
			if v != "" {
				blank = false
			}
			row[c.Name] = v
		}
		if !blank {
			d.Rows = append(d.Rows, row)
		}
	}
	return d
}

// Prepare drops rows that fail to parse and rejects the step when no row
// is left.
func (s *LineItemStep[R]) Prepare(d Draft, _ Submission) (any, error) {
	rows := make([]R, 0, len(d.Rows))
	for _, cells := range d.Rows {
		r, err := s.parseRow(cells, false)
		if err != nil {
			continue
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil, shared.NewValidationError("Add at least one valid row before saving.")
	}
	return map[string][]R{s.StepKey: rows}, nil
}

func (s *LineItemStep[R]) Commit(ctx context.Context, call Call, body any) (string, error) {
	if call.EntityID == "" {
		return "", ErrEntityRequired
	}
	if err := call.Backend.Update(ctx, call.Token, call.StepPath(), body, nil); err != nil {
		return "", err
	}
	return call.EntityID, nil
}

// parseRow validates and normalizes a copy of cells. With byLabel set,
// enumerated columns also accept their display label.
func (s *LineItemStep[R]) parseRow(in map[string]string, byLabel bool) (R, error) {
	var zero R
	cells, err := s.normalizeRow(in, byLabel)
	if err != nil {
		return zero, err
	}
	return s.Build(cells)
}

func (s *LineItemStep[R]) normalizeRow(in map[string]string, byLabel bool) (map[string]string, error) {
	cells := make(map[string]string, len(s.Columns))
	for _, c := range s.Columns {
		v := strings.TrimSpace(in[c.Name])
		if v == "" {
			if c.Required {
				return nil, fmt.Errorf("%s is required", c.Label)
			}
			cells[c.Name] = ""
			continue
		}
		switch {
		case c.Amount:
			amt, err := ParseAmount(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Label, err)
			}
			v = amt.StringFixed(2)
		case c.Date:
			norm, err := normalizeDate(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", c.Label, err)
			}
			v = norm
		case len(c.Choices) > 0:
			value, ok := matchChoice(c.Choices, v, byLabel)
			if !ok {
				return nil, fmt.Errorf("%s: unknown value %q", c.Label, v)
			}
			v = value
		}
		cells[c.Name] = v
	}
	return cells, nil
}

func matchChoice(choices []Choice, v string, byLabel bool) (string, bool) {
	for _, ch := range choices {
		if ch.Value == v {
			return ch.Value, true
		}
		if byLabel && strings.EqualFold(ch.Label, v) {
			return ch.Value, true
		}
	}
	return "", false
}

// AttachmentStep uploads files linked to the entity. It accepts zero files.
type AttachmentStep struct {
	StepKey    string
	StepTitle  string
	UploadPath string
	EntityType string
}

func (s *AttachmentStep) Key() string   { return s.StepKey }
func (s *AttachmentStep) Title() string { return s.StepTitle }

// AcceptsFiles marks the step as a multipart upload form.
func (s *AttachmentStep) AcceptsFiles() bool { return true }

func (s *AttachmentStep) Capture(sub Submission) Draft {
	d := Draft{}
	for _, f := range sub.Files {
		d.Files = append(d.Files, f.Filename)
	}
	return d
}

func (s *AttachmentStep) Prepare(_ Draft, sub Submission) (any, error) {
	return sub.Files, nil
}

func (s *AttachmentStep) Commit(ctx context.Context, call Call, body any) (string, error) {
	if call.EntityID == "" {
		return "", ErrEntityRequired
	}
	files, _ := body.([]backend.Upload)
	if len(files) > 0 && call.Transfer != nil {
		release, err := call.Transfer(ctx)
		if err != nil {
			return "", err
		}
		defer release()
	}
	for _, f := range files {
		f.Fields = map[string]string{
			"entity_type": s.EntityType,
			"entity_id":   call.EntityID,
		}
		if _, err := call.Backend.Upload(ctx, call.Token, s.UploadPath, f); err != nil {
			return "", fmt.Errorf("upload %s: %w", f.Filename, err)
		}
	}
	return call.EntityID, nil
}
