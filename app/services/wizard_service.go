package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/remote"
	"github.com/shashiranjanraj/lister/app/repositories"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/event"
	"github.com/shashiranjanraj/lister/pkg/keylock"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/metrics"
)

// EventWizardCompleted is fired with a WizardCompleted payload after
// Complete succeeds.
const EventWizardCompleted = "wizard.completed"

// WizardCompleted is the payload of EventWizardCompleted.
type WizardCompleted struct {
	UserID    string
	ProjectID string
}

// Session is a user's wizard pointer together with the project it edits.
type Session struct {
	State   models.WizardState `json:"state"`
	Project models.Project     `json:"project"`
}

// ticket identifies the wizard position that issued a remote call. A result
// is applied only if the session still matches it.
type ticket struct {
	projectID   string
	step        models.Step
	version     int64
	stepVersion int64
}

// Wizard is the ordered step machine over one project per user:
//
//	ProductSource → Branding → Images → SEO → Shipping → Preview → Done
//
// State transitions for a user are serialised. Remote calls run outside the
// lock; their results are discarded if the session moved meanwhile.
type Wizard struct {
	projects *repositories.ProjectRepository
	sessions *repositories.WizardRepository
	usage    *UsageService
	remote   remote.Client
	events   *event.Dispatcher
	locks    keylock.Locker
	timeout  time.Duration
	now      func() time.Time
}

// WizardOption customises a Wizard.
type WizardOption func(*Wizard)

// WithRemoteTimeout bounds each remote call. Zero leaves only the caller's
// deadline.
func WithRemoteTimeout(d time.Duration) WizardOption {
	return func(w *Wizard) { w.timeout = d }
}

// WithEvents sets the dispatcher that receives EventWizardCompleted.
func WithEvents(d *event.Dispatcher) WizardOption {
	return func(w *Wizard) { w.events = d }
}

// WithWizardClock replaces the time source for completedAt.
func WithWizardClock(now func() time.Time) WizardOption {
	return func(w *Wizard) { w.now = now }
}

func NewWizard(
	projects *repositories.ProjectRepository,
	sessions *repositories.WizardRepository,
	usage *UsageService,
	client remote.Client,
	opts ...WizardOption,
) *Wizard {
	w := &Wizard{
		projects: projects,
		sessions: sessions,
		usage:    usage,
		remote:   client,
		events:   event.Default,
		timeout:  30 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ─── Transitions ────────────────────────────────────────────────────────────

// Enter resumes the user's in-progress session or starts a new project.
// The listings limit is checked before anything is read or created.
func (w *Wizard) Enter(ctx context.Context, userID string) (sess Session, err error) {
	defer func() { w.observe("enter", sess.State.Step, err) }()

	unlock := w.locks.Lock(userID)
	defer unlock()

	if err := w.usage.Gate(ctx, userID, models.ResourceListings); err != nil {
		return Session{}, err
	}

	st, err := w.sessions.Get(ctx, userID)
	switch {
	case err == nil && !st.Done():
		p, perr := w.projects.Get(ctx, st.ProjectID)
		if perr == nil {
			return Session{State: st, Project: p}, nil
		}
		if !errs.IsCode(perr, errs.CodeNotFound) {
			return Session{}, perr
		}
		logger.WithCtx(ctx).Info("wizard: session project vanished, starting over",
			"user_id", userID, "project_id", st.ProjectID)
	case err != nil && !errs.IsCode(err, errs.CodeNotFound):
		return Session{}, err
	}

	p, err := w.projects.Create(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	next := models.WizardState{UserID: userID, ProjectID: p.ID, Version: st.Version}
	next.MoveTo(models.StepProductSource)
	if err := w.sessions.Put(ctx, next); err != nil {
		return Session{}, err
	}

	logger.WithCtx(ctx).Info("wizard: started", "user_id", userID, "project_id", p.ID)
	return w.session(ctx, next)
}

// Advance validates the current step and every earlier step the stored
// project satisfied against the merged project, persists the patch and
// moves to the next step. On any failure the stored project
// and the pointer are left as they were.
func (w *Wizard) Advance(ctx context.Context, userID string, current models.Step, patch models.ProjectPatch) (sess Session, err error) {
	defer func() { w.observe("advance", current, err) }()

	unlock := w.locks.Lock(userID)
	defer unlock()

	st, err := w.active(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := expectStep(st, current); err != nil {
		return Session{}, err
	}
	if st.Step == models.StepPreview {
		return Session{}, errs.Conflict("the preview step is finished with complete, not advance")
	}

	p, err := w.projects.Get(ctx, st.ProjectID)
	if err != nil {
		return Session{}, err
	}

	merged := p.Clone()
	merged.Apply(patch)
	if st.Step == models.StepShipping && merged.ShippingPolicy == "" {
		policy := models.DefaultShippingPolicy
		patch.ShippingPolicy = &policy
		merged.ShippingPolicy = policy
	}
	if err := validateStep(st.Step, merged); err != nil {
		return Session{}, err
	}
	// Earlier steps stay satisfied. A skipped ProductSource never was.
	for s := models.StepProductSource; s < st.Step; s++ {
		if validateStep(s, p) != nil {
			continue
		}
		if err := validateStep(s, merged); err != nil {
			return Session{}, err
		}
	}

	if !patch.Empty() {
		if p, err = w.projects.Upsert(ctx, st.ProjectID, patch); err != nil {
			return Session{}, err
		}
	}

	st.MoveTo(st.Step + 1)
	if err := w.sessions.Put(ctx, st); err != nil {
		return Session{}, err
	}

	logger.WithCtx(ctx).Info("wizard: advanced", "user_id", userID, "from", current, "to", st.Step)
	return Session{State: st, Project: p}, nil
}

// GoBack moves the pointer one step back. The project is not touched.
func (w *Wizard) GoBack(ctx context.Context, userID string, current models.Step) (sess Session, err error) {
	defer func() { w.observe("back", current, err) }()

	unlock := w.locks.Lock(userID)
	defer unlock()

	st, err := w.active(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if err := expectStep(st, current); err != nil {
		return Session{}, err
	}
	if st.Step == models.StepProductSource {
		return w.session(ctx, st)
	}

	st.MoveTo(st.Step - 1)
	if err := w.sessions.Put(ctx, st); err != nil {
		return Session{}, err
	}
	return w.session(ctx, st)
}

// Skip leaves ProductSource without extraction or a title.
func (w *Wizard) Skip(ctx context.Context, userID string) (sess Session, err error) {
	defer func() { w.observe("skip", models.StepProductSource, err) }()

	unlock := w.locks.Lock(userID)
	defer unlock()

	st, err := w.active(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if st.Step != models.StepProductSource {
		return Session{}, errs.Conflict("only the product source step can be skipped")
	}

	st.MoveTo(models.StepBranding)
	if err := w.sessions.Put(ctx, st); err != nil {
		return Session{}, err
	}
	return w.session(ctx, st)
}

// Complete finishes the wizard from the Preview step, counting one listing.
// The project stays DRAFT.
func (w *Wizard) Complete(ctx context.Context, userID string) (sess Session, err error) {
	defer func() { w.observe("complete", models.StepPreview, err) }()

	unlock := w.locks.Lock(userID)
	defer unlock()

	st, err := w.active(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if st.Step != models.StepPreview {
		return Session{}, errs.Conflict("the wizard can only be completed from the preview step")
	}

	if _, err := w.usage.Increment(ctx, userID, models.ResourceListings, 1); err != nil {
		return Session{}, err
	}

	done := w.now().UTC()
	st.MoveTo(models.StepDone)
	st.CompletedAt = &done
	if err := w.sessions.Put(ctx, st); err != nil {
		logger.WithCtx(ctx).Error("wizard: listing counted but session not saved",
			"user_id", userID, "project_id", st.ProjectID, "error", err)
		return Session{}, err
	}

	logger.WithCtx(ctx).Info("wizard: completed", "user_id", userID, "project_id", st.ProjectID)
	w.events.Fire(ctx, EventWizardCompleted, WizardCompleted{UserID: userID, ProjectID: st.ProjectID})
	return w.session(ctx, st)
}

// ─── Remote-backed step actions ─────────────────────────────────────────────

// ExtractProduct fills the project from a product page. Only available on
// ProductSource; counts one AI request when the call succeeds.
func (w *Wizard) ExtractProduct(ctx context.Context, userID, rawURL string) (Session, remote.ProductData, error) {
	sess, data, err := w.extractProduct(ctx, userID, rawURL)
	w.observe("extract", models.StepProductSource, err)
	return sess, data, err
}

func (w *Wizard) extractProduct(ctx context.Context, userID, rawURL string) (Session, remote.ProductData, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !absoluteHTTP(rawURL) {
		return Session{}, remote.ProductData{}, errs.Validation("url", "an absolute http(s) URL is required")
	}

	t, _, err := w.begin(ctx, userID, models.StepProductSource, true)
	if err != nil {
		return Session{}, remote.ProductData{}, err
	}

	data, err := callWithin(ctx, w.timeout, func(rctx context.Context) (remote.ProductData, error) {
		return w.remote.ExtractProductData(rctx, rawURL)
	})
	if err != nil {
		logger.WithCtx(ctx).Warn("wizard: extraction failed", "user_id", userID, "url", rawURL, "error", err)
		return Session{}, remote.ProductData{}, errs.Remote(err, "product extraction failed")
	}
	w.countAIRequest(ctx, userID)

	sess, err := w.apply(ctx, userID, t, true, func(models.Project) models.ProjectPatch {
		patch := models.ProjectPatch{SourceURL: &rawURL}
		if data.Title != "" {
			patch.Title = &data.Title
		}
		if data.Description != "" {
			patch.Description = &data.Description
		}
		if len(data.Features) > 0 {
			patch.Highlights = data.Features
		}
		return patch
	})
	return sess, data, err
}

// OptimizeSEO replaces the keywords (and highlights, when suggested) with
// the model's proposal. Only available on SEO; counts one AI request when
// the call succeeds.
func (w *Wizard) OptimizeSEO(ctx context.Context, userID string, useWebContext bool) (Session, string, error) {
	sess, explanation, err := w.optimizeSEO(ctx, userID, useWebContext)
	w.observe("seo", models.StepSEO, err)
	return sess, explanation, err
}

func (w *Wizard) optimizeSEO(ctx context.Context, userID string, useWebContext bool) (Session, string, error) {
	t, p, err := w.begin(ctx, userID, models.StepSEO, true)
	if err != nil {
		return Session{}, "", err
	}

	opts := remote.SEOOptions{UseWebContext: useWebContext, SourceURL: p.SourceURL}
	res, err := callWithin(ctx, w.timeout, func(rctx context.Context) (remote.SEOResult, error) {
		return w.remote.OptimizeSEO(rctx, p.Title, PlainText(p.Description), opts)
	})
	if err != nil {
		logger.WithCtx(ctx).Warn("wizard: seo optimisation failed", "user_id", userID, "error", err)
		return Session{}, "", errs.Remote(err, "SEO optimisation failed")
	}
	w.countAIRequest(ctx, userID)

	sess, err := w.apply(ctx, userID, t, true, func(models.Project) models.ProjectPatch {
		patch := models.ProjectPatch{SEOKeywords: res.Keywords}
		if len(res.Highlights) > 0 {
			patch.Highlights = res.Highlights
		}
		return patch
	})
	if err != nil {
		return Session{}, "", err
	}
	return sess, res.Explanation, nil
}

// UploadImage stores an image and appends its URL to the project. Only
// available on Images. Uploads commute, so parallel uploads on the same
// step all land. Leaving the step discards late results, even after
// coming back to it.
func (w *Wizard) UploadImage(ctx context.Context, userID, name string, data []byte) (sess Session, err error) {
	defer func() { w.observe("upload", models.StepImages, err) }()

	t, _, err := w.begin(ctx, userID, models.StepImages, false)
	if err != nil {
		return Session{}, err
	}

	var res remote.UploadResult
	res, err = callWithin(ctx, w.timeout, func(rctx context.Context) (remote.UploadResult, error) {
		return w.remote.UploadImage(rctx, name, data)
	})
	if err != nil {
		return Session{}, errs.Remote(err, "image upload failed")
	}

	return w.apply(ctx, userID, t, false, func(current models.Project) models.ProjectPatch {
		return models.ProjectPatch{Images: append(current.Clone().Images, res.URL)}
	})
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// State returns the user's session and project.
func (w *Wizard) State(ctx context.Context, userID string) (Session, error) {
	st, err := w.sessions.Get(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	return w.session(ctx, st)
}

// Preview renders the session's project as HTML.
func (w *Wizard) Preview(ctx context.Context, userID string) (string, error) {
	sess, err := w.State(ctx, userID)
	if err != nil {
		return "", err
	}
	return RenderPreview(sess.Project), nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (w *Wizard) session(ctx context.Context, st models.WizardState) (Session, error) {
	p, err := w.projects.Get(ctx, st.ProjectID)
	if err != nil {
		return Session{}, err
	}
	st.StepName = st.Step.String()
	return Session{State: st, Project: p}, nil
}

// active loads a session that has not been completed yet.
func (w *Wizard) active(ctx context.Context, userID string) (models.WizardState, error) {
	st, err := w.sessions.Get(ctx, userID)
	if err != nil {
		return models.WizardState{}, err
	}
	if st.Done() {
		return models.WizardState{}, errs.Conflict("the wizard is already completed; enter to start a new listing")
	}
	return st, nil
}

func expectStep(st models.WizardState, current models.Step) error {
	if st.Step != current {
		return errs.Conflict("step mismatch: the wizard is at " + st.Step.String()).
			WithMeta("step", st.Step).
			WithMeta("stepName", st.Step.String())
	}
	return nil
}

// begin checks the session is on step, optionally gates on the AI request
// limit, and returns the ticket the result must match.
func (w *Wizard) begin(ctx context.Context, userID string, step models.Step, gated bool) (ticket, models.Project, error) {
	unlock := w.locks.Lock(userID)
	defer unlock()

	st, err := w.active(ctx, userID)
	if err != nil {
		return ticket{}, models.Project{}, err
	}
	if st.Step != step {
		return ticket{}, models.Project{}, errs.Conflict("this action is only available on the " + step.String() + " step")
	}
	p, err := w.projects.Get(ctx, st.ProjectID)
	if err != nil {
		return ticket{}, models.Project{}, err
	}
	if gated {
		if err := w.usage.Gate(ctx, userID, models.ResourceAIRequests); err != nil {
			return ticket{}, models.Project{}, err
		}
	}
	return ticket{projectID: st.ProjectID, step: st.Step, version: st.Version, stepVersion: st.StepVersion}, p, nil
}

// apply merges a remote result if the session still matches t. With
// strict=false the pointer must not have moved since t was issued, but
// other results applied in between are allowed, so several uploads from
// one visit to a step all land.
func (w *Wizard) apply(ctx context.Context, userID string, t ticket, strict bool, build func(models.Project) models.ProjectPatch) (Session, error) {
	unlock := w.locks.Lock(userID)
	defer unlock()

	st, err := w.sessions.Get(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if stale(st, t, strict) {
		logger.WithCtx(ctx).Info("wizard: discarding stale result",
			"user_id", userID, "issued_step", t.step, "current_step", st.Step)
		return Session{}, errs.Conflict("stale result: the wizard moved on while the request was running")
	}

	current, err := w.projects.Get(ctx, st.ProjectID)
	if err != nil {
		return Session{}, err
	}
	p, err := w.projects.Upsert(ctx, st.ProjectID, build(current))
	if err != nil {
		return Session{}, err
	}

	st.Version++
	if err := w.sessions.Put(ctx, st); err != nil {
		return Session{}, err
	}
	st.StepName = st.Step.String()
	return Session{State: st, Project: p}, nil
}

func stale(st models.WizardState, t ticket, strict bool) bool {
	if st.ProjectID != t.projectID || st.Step != t.step || st.StepVersion != t.stepVersion {
		return true
	}
	return strict && st.Version != t.version
}

func (w *Wizard) countAIRequest(ctx context.Context, userID string) {
	if _, err := w.usage.Increment(ctx, userID, models.ResourceAIRequests, 1); err != nil {
		logger.WithCtx(ctx).Error("wizard: could not count AI request", "user_id", userID, "error", err)
	}
}

// callWithin runs fn under the remote timeout, or the caller's deadline if
// that comes first.
func callWithin[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	return fn(ctx)
}

func (w *Wizard) observe(op string, step models.Step, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(errs.CodeOf(err))
	}
	metrics.WizardTransitions.WithLabelValues(op, step.String(), outcome).Inc()
}

// validateStep checks the fields a step requires on the merged project.
func validateStep(step models.Step, p models.Project) error {
	switch step {
	case models.StepProductSource:
		if strings.TrimSpace(p.Title) == "" {
			return errs.Validation("title", "a title is required")
		}
	case models.StepBranding:
		if strings.TrimSpace(p.StoreName) == "" {
			return errs.Validation("storeName", "a store name is required")
		}
	case models.StepImages:
		n := 0
		for _, img := range p.Images {
			if strings.TrimSpace(img) != "" {
				n++
			}
		}
		if n == 0 {
			return errs.Validation("images", "at least one image is required")
		}
	case models.StepShipping:
		if !p.ShippingPolicy.Known() {
			return errs.Validation("shippingPolicy", "shipping policy must be SAME_DAY, D2_5 or D15_20")
		}
	}
	return nil
}

// PlainText strips the *bold* markers from s.
func PlainText(s string) string {
	return boldPattern.ReplaceAllString(s, "$1")
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
