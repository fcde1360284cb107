package wizard

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/grantdesk/grantdesk/internal/shared"
)

// Definition describes one kind of wizard.
type Definition struct {
	Kind  string
	Title string
	// Resource is the backend collection the wizard creates entities in.
	Resource string
	// ListPath is the console page reloaded after the wizard closes.
	ListPath string
	// Manage lists the roles allowed to run the wizard.
	Manage []string
	Steps  []Step
}

// Discarder removes an entity abandoned right after its first step.
type Discarder interface {
	DiscardDraft(ctx context.Context, kind, resource, entityID string) error
}

// Importer is implemented by steps that accept spreadsheet uploads.
type Importer interface {
	Import(filename string, r io.Reader) (Draft, Report, error)
}

// StepObserver records step submission outcomes.
type StepObserver interface {
	ObserveWizardStep(kind string, step int, err error)
}

// Controller runs wizards against the backend and keeps their state in Store.
type Controller struct {
	defs      map[string]Definition
	store     Store
	backend   Backend
	discarder Discarder
	logger    *slog.Logger
	observer  StepObserver
	gate      TransferGate
	now       func() time.Time
}

// TransferGate allows one file transfer in flight per session.
type TransferGate interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

// NewController registers the given definitions. discarder may be nil.
func NewController(store Store, be Backend, discarder Discarder, logger *slog.Logger, defs ...Definition) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		defs:      make(map[string]Definition, len(defs)),
		store:     store,
		backend:   be,
		discarder: discarder,
		logger:    logger,
		now:       time.Now,
	}
	for _, d := range defs {
		c.defs[d.Kind] = d
	}
	return c
}

// WithGate makes attachment steps share the session's transfer slot.
func (c *Controller) WithGate(g TransferGate) *Controller {
	c.gate = g
	return c
}

// WithObserver attaches a metrics observer.
func (c *Controller) WithObserver(o StepObserver) *Controller {
	c.observer = o
	return c
}

// Definition returns the definition of kind.
func (c *Controller) Definition(kind string) (Definition, bool) {
	d, ok := c.defs[kind]
	return d, ok
}

// Open creates a fresh state for kind owned by the given session.
func (c *Controller) Open(ctx context.Context, kind, owner string) (*State, error) {
	def, ok := c.defs[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	st := newState(uuid.NewString(), kind, owner, len(def.Steps), c.now())
	if err := c.store.Save(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Load fetches a state and checks that owner opened it.
func (c *Controller) Load(ctx context.Context, id, owner string) (*State, error) {
	st, err := c.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.Owner != owner {
		return nil, shared.ErrNotFound
	}
	if _, ok := c.defs[st.Kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, st.Kind)
	}
	return st, nil
}

// SubmitStep validates and persists step i. On failure the current step is
// unchanged and earlier commits stay; the entered values are kept either way.
func (c *Controller) SubmitStep(ctx context.Context, token string, st *State, i int, sub Submission) (err error) {
	if c.observer != nil {
		defer func() { c.observer.ObserveWizardStep(st.Kind, i, err) }()
	}
	def, step, err := c.step(st, i)
	if err != nil {
		return err
	}
	if i > 0 && st.EntityID == "" {
		return ErrEntityRequired
	}

	draft := step.Capture(sub)
	st.StepData[step.Key()] = draft
	body, prepErr := step.Prepare(draft, sub)
	if prepErr != nil {
		if err := c.store.Save(ctx, st); err != nil {
			return err
		}
		return prepErr
	}

	id, commitErr := step.Commit(ctx, Call{
		Backend:  c.backend,
		Token:    token,
		Resource: def.Resource,
		Kind:     def.Kind,
		Index:    i,
		EntityID: st.EntityID,
		Transfer: c.transfer(sub.Session),
	}, body)
	if commitErr != nil {
		c.logger.Warn("wizard step failed", slog.String("kind", st.Kind), slog.Int("step", i), slog.Any("error", commitErr))
		if err := c.store.Save(ctx, st); err != nil {
			return err
		}
		return commitErr
	}
	if st.EntityID == "" {
		st.EntityID = id
	}
	st.markCommitted(i)
	return c.store.Save(ctx, st)
}

// Import replaces the rows of a line item step with a spreadsheet's content.
func (c *Controller) Import(ctx context.Context, st *State, i int, filename string, r io.Reader) (Report, error) {
	_, step, err := c.step(st, i)
	if err != nil {
		return Report{}, err
	}
	imp, ok := step.(Importer)
	if !ok {
		return Report{}, fmt.Errorf("wizard: step %q does not import spreadsheets", step.Key())
	}
	draft, report, err := imp.Import(filename, r)
	if err != nil {
		return Report{}, err
	}
	st.StepData[step.Key()] = draft
	if err := c.store.Save(ctx, st); err != nil {
		return Report{}, err
	}
	return report, nil
}

// GoBack moves one step back. No network call is made.
func (c *Controller) GoBack(ctx context.Context, st *State) error {
	if !st.GoBack() {
		return nil
	}
	return c.store.Save(ctx, st)
}

// GoForward moves to the next step when the current one is committed.
func (c *Controller) GoForward(ctx context.Context, st *State) error {
	if err := st.GoForward(); err != nil {
		return err
	}
	return c.store.Save(ctx, st)
}

// Finalize closes the wizard. Every step already persisted itself.
func (c *Controller) Finalize(ctx context.Context, st *State) error {
	return c.store.Delete(ctx, st.ID)
}

// Cancel closes the wizard. An entity that only got its first step is
// handed to the discarder.
func (c *Controller) Cancel(ctx context.Context, st *State) error {
	if err := c.store.Delete(ctx, st.ID); err != nil {
		return err
	}
	if c.discarder == nil || !st.OnlyFirstCommitted() {
		return nil
	}
	def := c.defs[st.Kind]
	if err := c.discarder.DiscardDraft(ctx, st.Kind, def.Resource, st.EntityID); err != nil {
		c.logger.Error("discard wizard draft", slog.String("kind", st.Kind), slog.String("entity_id", st.EntityID), slog.Any("error", err))
		return err
	}
	return nil
}

func (c *Controller) step(st *State, i int) (Definition, Step, error) {
	def, ok := c.defs[st.Kind]
	if !ok {
		return Definition{}, nil, fmt.Errorf("%w: %s", ErrUnknownKind, st.Kind)
	}
	if i < 0 || i >= len(def.Steps) {
		return Definition{}, nil, ErrStepOutOfRange
	}
	return def, def.Steps[i], nil
}

func (c *Controller) transfer(session string) func(context.Context) (func(), error) {
	if c.gate == nil {
		return nil
	}
	return func(ctx context.Context) (func(), error) {
		return c.gate.Acquire(ctx, session)
	}
}
