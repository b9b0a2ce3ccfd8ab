// Package executor applies catalog actions to loaded documents. Local state
// only ever changes after the API has accepted a change.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"procurement/internal/apperr"
	"procurement/internal/resilient"
	"procurement/internal/workflow"

	"go.uber.org/zap"
)

var (
	ErrNotLoaded            = errors.New("document is not loaded")
	ErrInFlight             = errors.New("an action is already running for this document")
	ErrActionUnavailable    = errors.New("action is not available")
	ErrConfirmationRequired = errors.New("action requires confirmation")
)

// Persistence is the API the executor drives for one document kind.
type Persistence interface {
	List(ctx context.Context, filter workflow.ListFilter) ([]workflow.Entity, error)
	Create(ctx context.Context, payload any) (workflow.Entity, error)
	Update(ctx context.Context, id string, payload any) (workflow.Entity, error)
	UpdateStatus(ctx context.Context, id string, status workflow.Status) (workflow.Entity, error)
	Approve(ctx context.Context, id string, decision workflow.Decision, reason string) (workflow.Entity, error)
	Delete(ctx context.Context, id string) error
}

// PermissionSource supplies the caller's current permission codes.
type PermissionSource interface {
	Permissions() workflow.PermissionSet
}

// Intent tells the presentation layer what to do with a result.
type Intent int

const (
	IntentNone Intent = iota
	IntentOpenEditor
	IntentOpenDetails
	IntentUpdated
	IntentRemoved
)

type Result struct {
	Entity workflow.Entity
	Action workflow.StatusAction
	Intent Intent
}

// Row is everything a list view needs to render one document.
type Row struct {
	Entity   workflow.Entity
	Display  workflow.Display
	Actions  []workflow.StatusAction
	InFlight bool
	Selected bool
}

type applyOptions struct {
	reason    string
	confirmed bool
}

type ApplyOption func(*applyOptions)

// WithReason attaches an approver comment to approve/reject.
func WithReason(reason string) ApplyOption {
	return func(o *applyOptions) { o.reason = reason }
}

// WithConfirmation marks that the user confirmed a destructive action.
func WithConfirmation() ApplyOption {
	return func(o *applyOptions) { o.confirmed = true }
}

type Executor struct {
	catalog *workflow.Catalog
	api     Persistence
	caller  *resilient.Caller
	perms   PermissionSource
	store   *Store
	log     *zap.Logger
	now     func() time.Time
}

func New(catalog *workflow.Catalog, api Persistence, caller *resilient.Caller, perms PermissionSource, log *zap.Logger) *Executor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		catalog: catalog,
		api:     api,
		caller:  caller,
		perms:   perms,
		store:   NewStore(),
		log:     log.With(zap.String("kind", catalog.Kind.String())),
		now:     time.Now,
	}
}

func (e *Executor) Kind() workflow.Kind {
	return e.catalog.Kind
}

func (e *Executor) Store() *Store {
	return e.store
}

// Load replaces the collection with a listing. Reads are retried on transient
// network failures.
func (e *Executor) Load(ctx context.Context, filter workflow.ListFilter) error {
	kind := e.catalog.Kind
	items, err := resilient.Call(ctx, e.caller, func(ctx context.Context) ([]workflow.Entity, error) {
		return e.api.List(ctx, filter)
	}, "load "+kind.Plural(), resilient.WithRetryKey("list:"+kind.String()))
	if err != nil {
		return err
	}

	e.store.Replace(items)
	e.log.Debug("documents loaded", zap.Int("count", len(items)))
	return nil
}

// Create posts a new document and shows it at the top of the list.
func (e *Executor) Create(ctx context.Context, payload any) (workflow.Entity, error) {
	kind := e.catalog.Kind
	created, err := resilient.Call(ctx, e.caller, func(ctx context.Context) (workflow.Entity, error) {
		return e.api.Create(ctx, payload)
	}, "create "+kind.Label(), resilient.WithRetryKey("create:"+kind.String()), resilient.WithMaxRetries(0))
	if err != nil {
		return workflow.Entity{}, err
	}

	e.store.Prepend(created)
	return created, nil
}

// Rows renders the collection for the current permissions.
func (e *Executor) Rows(ctx context.Context) []Row {
	perms := e.perms.Permissions()
	entities := e.store.All()

	rows := make([]Row, 0, len(entities))
	for _, en := range entities {
		if !e.catalog.Knows(en.Status) {
			e.caller.Report(ctx, "status:"+en.ID, apperr.New(apperr.UnknownStatus, en.Number,
				fmt.Sprintf("unrecognised status %q, only viewing is available", en.Status)))
		}
		rows = append(rows, Row{
			Entity:   en,
			Display:  e.catalog.DisplayFor(en.Status),
			Actions:  e.catalog.AvailableActions(en.Status, perms),
			InFlight: e.store.InFlight(en.ID),
			Selected: e.store.IsSelected(en.ID),
		})
	}
	return rows
}

// ApplyEvent folds a pushed change for this kind into the store.
func (e *Executor) ApplyEvent(ev workflow.Event) bool {
	if ev.Entity.Kind != e.catalog.Kind {
		return false
	}
	return e.store.ApplyEvent(ev)
}

// ApplyAction runs action kind on document id. Mutations are sent once and
// never retried; on failure the local document is left untouched.
func (e *Executor) ApplyAction(ctx context.Context, id string, kind workflow.ActionKind, opts ...ApplyOption) (Result, error) {
	var o applyOptions
	for _, opt := range opts {
		opt(&o)
	}

	entity, ok := e.store.Get(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	if !e.store.beginAction(id) {
		return Result{}, fmt.Errorf("%w: %s", ErrInFlight, entity.Number)
	}
	defer e.store.endAction(id)

	action, ok := e.offered(entity.Status, kind)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s on %s in status %s", ErrActionUnavailable, kind, entity.Number, entity.Status)
	}
	if action.RequiresConfirmation && !o.confirmed {
		return Result{}, fmt.Errorf("%w: %s", ErrConfirmationRequired, action.Label)
	}

	key := "action:" + e.catalog.Kind.String() + ":" + id + ":" + kind.String()
	errCtx := action.Label + " " + entity.Number
	log := e.log.With(zap.String("id", id), zap.String("action", kind.String()))

	switch kind {
	case workflow.ActionEdit:
		return Result{Entity: entity, Action: action, Intent: IntentOpenEditor}, nil

	case workflow.ActionViewDetails:
		return Result{Entity: entity, Action: action, Intent: IntentOpenDetails}, nil

	case workflow.ActionDelete:
		_, err := resilient.Call(ctx, e.caller, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, e.api.Delete(ctx, id)
		}, errCtx, resilient.WithRetryKey(key), resilient.WithMaxRetries(0))
		if err != nil {
			log.Warn("delete failed", zap.Error(err))
			return Result{}, err
		}
		e.store.Remove(id)
		log.Info("document deleted")
		return Result{Entity: entity, Action: action, Intent: IntentRemoved}, nil

	case workflow.ActionApprove, workflow.ActionReject:
		decision := workflow.DecisionApprove
		if kind == workflow.ActionReject {
			decision = workflow.DecisionReject
		}
		updated, err := resilient.Call(ctx, e.caller, func(ctx context.Context) (workflow.Entity, error) {
			return e.api.Approve(ctx, id, decision, o.reason)
		}, errCtx, resilient.WithRetryKey(key), resilient.WithMaxRetries(0))
		return e.commit(entity, action, updated, err, log)

	case workflow.ActionSubmitForApproval,
		workflow.ActionRequestChanges,
		workflow.ActionMarkDelivered,
		workflow.ActionMarkCompleted,
		workflow.ActionMarkPaid,
		workflow.ActionCancel:
		if !action.Transitions() {
			return e.notImplemented(ctx, key, entity, action)
		}
		updated, err := resilient.Call(ctx, e.caller, func(ctx context.Context) (workflow.Entity, error) {
			return e.api.UpdateStatus(ctx, id, action.Next)
		}, errCtx, resilient.WithRetryKey(key), resilient.WithMaxRetries(0))
		return e.commit(entity, action, updated, err, log)

	default:
		return e.notImplemented(ctx, key, entity, action)
	}
}

// SaveEdit sends the content produced by the editor that ActionEdit opened.
// It is refused locally once the document no longer offers the edit action.
func (e *Executor) SaveEdit(ctx context.Context, id string, payload any) (Result, error) {
	entity, ok := e.store.Get(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}

	if !e.store.beginAction(id) {
		return Result{}, fmt.Errorf("%w: %s", ErrInFlight, entity.Number)
	}
	defer e.store.endAction(id)

	action, ok := e.offered(entity.Status, workflow.ActionEdit)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s on %s in status %s", ErrActionUnavailable, workflow.ActionEdit, entity.Number, entity.Status)
	}

	key := "action:" + e.catalog.Kind.String() + ":" + id + ":" + workflow.ActionEdit.String()
	log := e.log.With(zap.String("id", id), zap.String("action", workflow.ActionEdit.String()))

	updated, err := resilient.Call(ctx, e.caller, func(ctx context.Context) (workflow.Entity, error) {
		return e.api.Update(ctx, id, payload)
	}, "save "+entity.Number, resilient.WithRetryKey(key), resilient.WithMaxRetries(0))
	if err != nil {
		log.Warn("edit failed", zap.Error(err))
		return Result{}, err
	}

	if updated.ID == "" {
		updated.ID = id
	}
	if !e.store.replace(updated) {
		log.Debug("edited document no longer loaded")
	}
	log.Info("document edited")
	return Result{Entity: updated, Action: action, Intent: IntentUpdated}, nil
}

// offered resolves kind against what the caller may do right now.
func (e *Executor) offered(status workflow.Status, kind workflow.ActionKind) (workflow.StatusAction, bool) {
	for _, a := range e.catalog.AvailableActions(status, e.perms.Permissions()) {
		if a.Kind == kind {
			return a, true
		}
	}
	return workflow.StatusAction{}, false
}

func (e *Executor) commit(prior workflow.Entity, action workflow.StatusAction, updated workflow.Entity, err error, log *zap.Logger) (Result, error) {
	if err != nil {
		log.Warn("action failed", zap.String("status", prior.Status.String()), zap.Error(err))
		return Result{}, err
	}

	status := updated.Status
	if status == "" {
		status = action.Next
	}
	lastModified := updated.LastModified
	if lastModified.IsZero() {
		lastModified = e.now()
	}

	committed, ok := e.store.commit(prior.ID, status, lastModified)
	if !ok {
		// Removed by a pushed delete while the call was running.
		committed = prior
		committed.Status = status
		committed.LastModified = lastModified
	}

	log.Info("status changed",
		zap.String("from", prior.Status.String()),
		zap.String("to", status.String()))
	return Result{Entity: committed, Action: action, Intent: IntentUpdated}, nil
}

func (e *Executor) notImplemented(ctx context.Context, key string, entity workflow.Entity, action workflow.StatusAction) (Result, error) {
	err := apperr.New(apperr.ActionNotImplemented, action.Label+" "+entity.Number, action.Label+" is not available yet")
	e.caller.Report(ctx, key, err)
	return Result{Entity: entity, Action: action, Intent: IntentNone}, err
}
