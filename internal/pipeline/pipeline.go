// Package pipeline runs one submission through access, policy stages,
// persistence and fan-out.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/formgate/formgate/internal/access"
	"github.com/formgate/formgate/internal/fanout"
	"github.com/formgate/formgate/internal/formsettings"
	"github.com/formgate/formgate/internal/identity"
	"github.com/formgate/formgate/internal/models"
	"github.com/formgate/formgate/internal/policy"
	log "github.com/sirupsen/logrus"
)

// Store persists accepted submissions.
type Store interface {
	SubmitForm(ctx context.Context, formID string, data map[string]any, ip string) (*models.Submission, error)
}

// Dispatcher receives stored submissions for fan-out.
type Dispatcher interface {
	Dispatch(ev fanout.Event) bool
}

// Input is one submission attempt.
type Input struct {
	FormID  string
	Request *http.Request
	Data    map[string]any
}

// Result describes an accepted submission.
type Result struct {
	Form       *models.Form
	Settings   formsettings.Effective
	Submission *models.Submission
}

// Pipeline is bound to one channel.
type Pipeline struct {
	channel    policy.Channel
	guard      access.Guard
	resolver   *identity.Resolver
	stages     []policy.Stage
	store      Store
	dispatcher Dispatcher
	now        func() time.Time
}

// New assembles a pipeline. A nil dispatcher disables fan-out.
func New(channel policy.Channel, guard access.Guard, resolver *identity.Resolver, stages []policy.Stage, store Store, dispatcher Dispatcher) *Pipeline {
	return &Pipeline{
		channel:    channel,
		guard:      guard,
		resolver:   resolver,
		stages:     stages,
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Run processes in. Exactly one of the results is non-nil. Panics anywhere
// in the run become an Internal rejection. Reservations made by stages are
// released unless the submission is stored.
func (p *Pipeline) Run(ctx context.Context, in Input) (res *Result, rej *policy.Rejection) {
	entry := log.WithFields(log.Fields{"form_id": in.FormID, "channel": p.channel})
	var (
		sub       *policy.Submission
		evaluated []policy.Stage
		stored    bool
	)
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Errorf("pipeline: panic recovered\n%s", debug.Stack())
			res = nil
			rej = &policy.Rejection{Kind: policy.KindInternal, Cause: fmt.Errorf("panic: %v", r)}
		}
		if !stored && sub != nil {
			releaseStages(context.WithoutCancel(ctx), entry, evaluated, sub)
		}
	}()

	form, errAuth := p.guard.Authorize(ctx, in.Request, in.FormID)
	if errAuth != nil {
		return nil, AccessRejection(entry, errAuth)
	}

	schema, errSchema := formsettings.ParseSchema(form.Schema)
	if errSchema != nil {
		entry.WithError(errSchema).Warn("pipeline: form schema unreadable, using defaults")
		schema = &formsettings.Schema{}
	}
	settings, errSettings := formsettings.ResolveAll(schema.Settings)
	if errSettings != nil {
		entry.WithError(errSettings).Warn("pipeline: malformed form settings, defaults applied")
	}
	if settings.Title == "" {
		settings.Title = form.Title
	}

	data := in.Data
	if data == nil {
		data = map[string]any{}
	}
	sub = &policy.Submission{
		Channel:  p.channel,
		Form:     form,
		Schema:   schema,
		Settings: settings,
		Identity: p.resolver.Resolve(in.Request),
		Data:     data,
		Now:      p.now().UTC(),
	}
	entry = entry.WithField("ip", sub.Identity.IP)

	for _, stage := range p.stages {
		evaluated = append(evaluated, stage)
		stageRej, errStage := stage.Evaluate(ctx, sub)
		if errStage != nil {
			entry.WithError(errStage).WithField("stage", stage.Name()).Error("pipeline: stage failed")
			return nil, &policy.Rejection{Kind: policy.KindInternal, Cause: errStage}
		}
		if stageRej != nil {
			entry.WithFields(log.Fields{"stage": stage.Name(), "kind": stageRej.Kind}).Info("pipeline: submission rejected")
			return nil, stageRej
		}
	}

	record, errStore := p.store.SubmitForm(ctx, form.ID, sub.Data, sub.Identity.IP)
	if errStore != nil {
		entry.WithError(errStore).Error("pipeline: store submission")
		return nil, &policy.Rejection{Kind: policy.KindStorageError, Cause: errStore}
	}
	stored = true

	if p.dispatcher != nil {
		p.dispatcher.Dispatch(fanout.Event{
			Name:         fanout.EventFormSubmitted,
			FormID:       form.ID,
			OwnerID:      form.UserID,
			FormTitle:    settings.Title,
			Fields:       schema.Fields,
			Notify:       settings.Notifications,
			SubmittedAt:  record.CreatedAt,
			SubmissionID: record.ID,
			IPAddress:    record.IPAddress,
			Data:         sub.Data,
		})
	}

	entry.WithField("submission_id", record.ID).Debug("pipeline: submission stored")
	return &Result{Form: form, Settings: settings, Submission: record}, nil
}

// releaseStages hands back reservations in reverse evaluation order.
func releaseStages(ctx context.Context, entry *log.Entry, stages []policy.Stage, sub *policy.Submission) {
	for i := len(stages) - 1; i >= 0; i-- {
		releaser, ok := stages[i].(policy.Releaser)
		if !ok {
			continue
		}
		if errRelease := releaser.Release(ctx, sub); errRelease != nil {
			entry.WithError(errRelease).WithField("stage", stages[i].Name()).Warn("pipeline: release reservation failed")
		}
	}
}

// AccessRejection maps a guard error to its rejection. Unexpected errors
// are logged on entry.
func AccessRejection(entry *log.Entry, err error) *policy.Rejection {
	if message, ok := access.DeniedMessage(err); ok {
		return &policy.Rejection{Kind: policy.KindUnauthorized, Error: message, Cause: err}
	}
	if errors.Is(err, access.ErrFormNotFound) {
		return &policy.Rejection{Kind: policy.KindNotFound, Cause: err}
	}
	entry.WithError(err).Error("pipeline: access check failed")
	return &policy.Rejection{Kind: policy.KindInternal, Cause: err}
}
