package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/remote"
	"github.com/shashiranjanraj/lister/app/repositories"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/event"
	"github.com/shashiranjanraj/lister/pkg/kv"
)

type fakeRemote struct {
	extract func(ctx context.Context, url string) (remote.ProductData, error)
	seo     func(ctx context.Context, title, desc string, opts remote.SEOOptions) (remote.SEOResult, error)
	upload  func(name string) (remote.UploadResult, error)
	uploads int32
}

func (f *fakeRemote) ExtractProductData(ctx context.Context, url string) (remote.ProductData, error) {
	if f.extract == nil {
		return remote.ProductData{}, errors.New("not configured")
	}
	return f.extract(ctx, url)
}

func (f *fakeRemote) OptimizeSEO(ctx context.Context, title, desc string, opts remote.SEOOptions) (remote.SEOResult, error) {
	if f.seo == nil {
		return remote.SEOResult{}, errors.New("not configured")
	}
	return f.seo(ctx, title, desc, opts)
}

func (f *fakeRemote) UploadImage(_ context.Context, name string, _ []byte) (remote.UploadResult, error) {
	if f.upload != nil {
		return f.upload(name)
	}
	n := atomic.AddInt32(&f.uploads, 1)
	return remote.UploadResult{URL: fmt.Sprintf("https://cdn.test/uploads/%d-%s", n, name)}, nil
}

func (f *fakeRemote) TakeScreenshot(context.Context, string) ([]byte, error)        { return nil, nil }
func (f *fakeRemote) ScrapeContent(context.Context, string, string) (string, error) { return "", nil }
func (f *fakeRemote) ExtractLinks(context.Context, string) ([]string, error)         { return nil, nil }
func (f *fakeRemote) ExtractPageContent(context.Context, string) (string, error)     { return "", nil }

type harness struct {
	wizard   *Wizard
	usage    *UsageService
	projects *repositories.ProjectRepository
	remote   *fakeRemote
	events   *event.Dispatcher
}

func newHarness(t *testing.T, opts ...WizardOption) *harness {
	t.Helper()
	store := kv.NewMemory()
	h := &harness{
		usage: NewUsageService(
			repositories.NewUsageRepository(store),
			repositories.NewSubscriptionRepository(store),
		),
		projects: repositories.NewProjectRepository(store),
		remote:   &fakeRemote{},
		events:   event.New(),
	}
	opts = append([]WizardOption{WithEvents(h.events), WithRemoteTimeout(time.Second)}, opts...)
	h.wizard = NewWizard(h.projects, repositories.NewWizardRepository(store), h.usage, h.remote, opts...)
	return h
}

// walkTo advances a fresh session with valid input until it sits on step.
func (h *harness) walkTo(t *testing.T, user string, step models.Step) Session {
	t.Helper()
	ctx := context.Background()

	sess, err := h.wizard.Enter(ctx, user)
	require.NoError(t, err)

	patches := map[models.Step]models.ProjectPatch{
		models.StepProductSource: {Title: models.Ptr("Widget"), Description: models.Ptr("A *great* widget")},
		models.StepBranding:      {StoreName: models.Ptr("Acme")},
		models.StepImages:        {Images: []string{"https://img.test/1.png"}},
		models.StepSEO:           {},
		models.StepShipping:      {},
	}
	for s := sess.State.Step; s < step; s++ {
		sess, err = h.wizard.Advance(ctx, user, s, patches[s])
		require.NoError(t, err)
	}
	require.Equal(t, step, sess.State.Step)
	return sess
}

func TestEnterCreatesAndResumes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StepProductSource, first.State.Step)
	assert.Equal(t, models.StatusDraft, first.Project.Status)
	assert.Equal(t, "alice", first.Project.OwnerID)

	again, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.Project.ID, again.Project.ID)
}

func TestEnterBlockedAtLimitCreatesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.usage.Increment(ctx, "alice", models.ResourceListings, 3)
	require.NoError(t, err)

	_, err = h.wizard.Enter(ctx, "alice")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeLimitReached))

	ids, err := h.projects.IDs(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = h.wizard.State(ctx, "alice")
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))
}

func TestEnterStartsOverWhenProjectVanished(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, h.projects.Delete(ctx, first.Project.ID))

	second, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.Project.ID, second.Project.ID)
	assert.Greater(t, second.State.Version, first.State.Version)
}

func TestFullRunCompletesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var fired []WizardCompleted
	h.events.Listen(EventWizardCompleted, func(_ context.Context, p any) {
		fired = append(fired, p.(WizardCompleted))
	})

	sess := h.walkTo(t, "alice", models.StepPreview)
	assert.Equal(t, models.Shipping2To5, sess.Project.ShippingPolicy, "default shipping policy is written")

	done, err := h.wizard.Complete(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, done.State.Done())
	assert.NotNil(t, done.State.CompletedAt)
	assert.Equal(t, models.StatusDraft, done.Project.Status)

	_, err = h.wizard.Complete(ctx, "alice")
	assert.True(t, errs.IsCode(err, errs.CodeConflict))

	snap, err := h.usage.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Usage.ListingsGenerated)
	assert.Equal(t, []WizardCompleted{{UserID: "alice", ProjectID: done.Project.ID}}, fired)

	next, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, done.Project.ID, next.Project.ID, "a completed session starts a new project")
}

func TestAdvanceImagesWithoutImagesFails(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sess := h.walkTo(t, "alice", models.StepImages)

	before, err := h.projects.Get(ctx, sess.Project.ID)
	require.NoError(t, err)

	_, err = h.wizard.Advance(ctx, "alice", models.StepImages, models.ProjectPatch{
		Images: []string{},
		Title:  models.Ptr("Changed"),
	})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeValidation))

	after, err := h.projects.Get(ctx, sess.Project.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	state, err := h.wizard.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StepImages, state.State.Step)
}

func TestAdvanceRequirements(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)

	_, err = h.wizard.Advance(ctx, "alice", models.StepProductSource, models.ProjectPatch{Title: models.Ptr("  ")})
	assert.True(t, errs.IsCode(err, errs.CodeValidation))

	_, err = h.wizard.Advance(ctx, "alice", models.StepBranding, models.ProjectPatch{})
	assert.True(t, errs.IsCode(err, errs.CodeConflict), "step mismatch")

	h2 := newHarness(t)
	h2.walkTo(t, "bob", models.StepShipping)
	_, err = h2.wizard.Advance(ctx, "bob", models.StepShipping, models.ProjectPatch{
		ShippingPolicy: models.Ptr(models.ShippingPolicy("NEXT_YEAR")),
	})
	assert.True(t, errs.IsCode(err, errs.CodeValidation))

	h2.walkTo(t, "carol", models.StepPreview)
	_, err = h2.wizard.Advance(ctx, "carol", models.StepPreview, models.ProjectPatch{})
	assert.True(t, errs.IsCode(err, errs.CodeConflict))
}

func TestAdvanceKeepsEarlierStepsSatisfied(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sess := h.walkTo(t, "alice", models.StepSEO)

	_, err := h.wizard.Advance(ctx, "alice", models.StepSEO, models.ProjectPatch{Images: []string{}})
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeValidation))

	_, err = h.wizard.Advance(ctx, "alice", models.StepSEO, models.ProjectPatch{StoreName: models.Ptr(" ")})
	assert.True(t, errs.IsCode(err, errs.CodeValidation))

	state, err := h.wizard.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StepSEO, state.State.Step)
	assert.Equal(t, sess.Project.Images, state.Project.Images)
	assert.Equal(t, "Acme", state.Project.StoreName)
	assert.Equal(t, models.StatusDraft, state.Project.Status)
}

func TestAdvanceAfterSkipDoesNotRequireTitle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	_, err = h.wizard.Skip(ctx, "alice")
	require.NoError(t, err)

	sess, err := h.wizard.Advance(ctx, "alice", models.StepBranding, models.ProjectPatch{StoreName: models.Ptr("Acme")})
	require.NoError(t, err)
	assert.Equal(t, models.StepImages, sess.State.Step)
	assert.Empty(t, sess.Project.Title)
}

func TestGoBackAndSkip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	sess, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)

	back, err := h.wizard.GoBack(ctx, "alice", models.StepProductSource)
	require.NoError(t, err)
	assert.Equal(t, models.StepProductSource, back.State.Step)
	assert.Equal(t, sess.State.Version, back.State.Version, "back at step 0 is a no-op")

	skipped, err := h.wizard.Skip(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StepBranding, skipped.State.Step)
	assert.Empty(t, skipped.Project.Title)

	_, err = h.wizard.Skip(ctx, "alice")
	assert.True(t, errs.IsCode(err, errs.CodeConflict))

	back, err = h.wizard.GoBack(ctx, "alice", models.StepBranding)
	require.NoError(t, err)
	assert.Equal(t, models.StepProductSource, back.State.Step)
}

func TestExtractProductMerges(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.remote.extract = func(context.Context, string) (remote.ProductData, error) {
		return remote.ProductData{Title: "Acme Widget", Features: []string{"Steel", "Light"}}, nil
	}
	_, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)

	sess, data, err := h.wizard.ExtractProduct(ctx, "alice", "https://shop.test/w")
	require.NoError(t, err)
	assert.Equal(t, "Acme Widget", data.Title)
	assert.Equal(t, "Acme Widget", sess.Project.Title)
	assert.Equal(t, "https://shop.test/w", sess.Project.SourceURL)
	assert.Equal(t, []string{"Steel", "Light"}, sess.Project.Highlights)
	assert.Equal(t, models.StepProductSource, sess.State.Step)

	snap, err := h.usage.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Usage.AIRequestsMade)
}

func TestExtractProductTimeoutLeavesProjectAlone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithRemoteTimeout(20*time.Millisecond))
	h.remote.extract = func(ctx context.Context, _ string) (remote.ProductData, error) {
		<-ctx.Done()
		return remote.ProductData{}, &remote.Error{Op: "extract", Message: "timed out", Err: ctx.Err()}
	}

	sess, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	_, err = h.projects.Upsert(ctx, sess.Project.ID, models.ProjectPatch{SourceURL: models.Ptr("https://old.test")})
	require.NoError(t, err)

	_, _, err = h.wizard.ExtractProduct(ctx, "alice", "https://new.test")
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeRemote))

	state, err := h.wizard.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StepProductSource, state.State.Step)
	assert.Equal(t, "https://old.test", state.Project.SourceURL)

	snap, err := h.usage.Usage(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, snap.Usage.AIRequestsMade, "failed calls are not counted")
}

func TestExtractProductGatedByAILimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	called := false
	h.remote.extract = func(context.Context, string) (remote.ProductData, error) {
		called = true
		return remote.ProductData{}, nil
	}
	_, err := h.wizard.Enter(ctx, "alice")
	require.NoError(t, err)
	_, err = h.usage.Increment(ctx, "alice", models.ResourceAIRequests, 10)
	require.NoError(t, err)

	_, _, err = h.wizard.ExtractProduct(ctx, "alice", "https://shop.test")
	assert.True(t, errs.IsCode(err, errs.CodeLimitReached))
	assert.False(t, called)
}

func TestExtractProductRejectsBadURL(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.wizard.ExtractProduct(context.Background(), "alice", "ftp://x")
	assert.True(t, errs.IsCode(err, errs.CodeValidation))
}

func TestStaleResultDiscardedAfterGoBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	h.remote.seo = func(context.Context, string, string, remote.SEOOptions) (remote.SEOResult, error) {
		close(started)
		<-release
		return remote.SEOResult{Keywords: []string{"late"}}, nil
	}
	h.walkTo(t, "alice", models.StepSEO)

	errc := make(chan error, 1)
	go func() {
		_, _, err := h.wizard.OptimizeSEO(ctx, "alice", false)
		errc <- err
	}()

	<-started
	_, err := h.wizard.GoBack(ctx, "alice", models.StepSEO)
	require.NoError(t, err)
	close(release)

	err = <-errc
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeConflict))

	state, err := h.wizard.State(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, state.Project.SEOKeywords)
	assert.Equal(t, models.StepImages, state.State.Step)
}

func TestNewerResultWinsOverOlder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var calls int32
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	h.remote.seo = func(context.Context, string, string, remote.SEOOptions) (remote.SEOResult, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(slowStarted)
			<-releaseSlow
			return remote.SEOResult{Keywords: []string{"old"}}, nil
		}
		return remote.SEOResult{Keywords: []string{"new"}}, nil
	}
	h.walkTo(t, "alice", models.StepSEO)

	errc := make(chan error, 1)
	go func() {
		_, _, err := h.wizard.OptimizeSEO(ctx, "alice", false)
		errc <- err
	}()
	<-slowStarted

	sess, _, err := h.wizard.OptimizeSEO(ctx, "alice", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, sess.Project.SEOKeywords)

	close(releaseSlow)
	assert.True(t, errs.IsCode(<-errc, errs.CodeConflict))

	state, err := h.wizard.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, state.Project.SEOKeywords)
}

func TestOptimizeSEOPassesPlainDescription(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var gotDesc string
	var gotOpts remote.SEOOptions
	h.remote.seo = func(_ context.Context, _, desc string, opts remote.SEOOptions) (remote.SEOResult, error) {
		gotDesc, gotOpts = desc, opts
		return remote.SEOResult{
			Keywords:    []string{"widget", "widget", "tool"},
			Highlights:  []string{"*Fast* shipping"},
			Explanation: "because",
		}, nil
	}
	h.walkTo(t, "alice", models.StepSEO)

	sess, why, err := h.wizard.OptimizeSEO(ctx, "alice", true)
	require.NoError(t, err)
	assert.Equal(t, "A great widget", gotDesc)
	assert.True(t, gotOpts.UseWebContext)
	assert.Equal(t, "because", why)
	assert.Equal(t, []string{"widget", "tool"}, sess.Project.SEOKeywords)
	assert.Equal(t, []string{"*Fast* shipping"}, sess.Project.Highlights)
}

func TestUploadImageAppends(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.walkTo(t, "alice", models.StepImages)

	_, err := h.wizard.UploadImage(ctx, "alice", "a.png", []byte("x"))
	require.NoError(t, err)
	sess, err := h.wizard.UploadImage(ctx, "alice", "b.png", []byte("x"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://cdn.test/uploads/1-a.png",
		"https://cdn.test/uploads/2-b.png",
	}, sess.Project.Images)

	_, err = h.wizard.Advance(ctx, "alice", models.StepImages, models.ProjectPatch{})
	require.NoError(t, err)

	_, err = h.wizard.UploadImage(ctx, "alice", "c.png", []byte("x"))
	assert.True(t, errs.IsCode(err, errs.CodeConflict), "uploads only on the images step")
}

func TestUploadDiscardedAfterLeavingAndReturning(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	started := make(chan struct{})
	release := make(chan struct{})
	h.remote.upload = func(string) (remote.UploadResult, error) {
		close(started)
		<-release
		return remote.UploadResult{URL: "https://cdn.test/late.png"}, nil
	}
	h.walkTo(t, "alice", models.StepImages)

	errc := make(chan error, 1)
	go func() {
		_, err := h.wizard.UploadImage(ctx, "alice", "late.png", []byte("x"))
		errc <- err
	}()

	<-started
	_, err := h.wizard.GoBack(ctx, "alice", models.StepImages)
	require.NoError(t, err)
	_, err = h.wizard.Advance(ctx, "alice", models.StepBranding, models.ProjectPatch{})
	require.NoError(t, err)
	close(release)

	err = <-errc
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.CodeConflict))

	state, err := h.wizard.State(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.StepImages, state.State.Step)
	assert.Empty(t, state.Project.Images)
}

func TestParallelUploadsOnOneVisitAllLand(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	var wg sync.WaitGroup
	wg.Add(2)
	h.remote.upload = func(name string) (remote.UploadResult, error) {
		wg.Done()
		wg.Wait()
		return remote.UploadResult{URL: "https://cdn.test/" + name}, nil
	}
	h.walkTo(t, "alice", models.StepImages)

	errc := make(chan error, 2)
	for _, name := range []string{"a.png", "b.png"} {
		go func() {
			_, err := h.wizard.UploadImage(ctx, "alice", name, []byte("x"))
			errc <- err
		}()
	}
	require.NoError(t, <-errc)
	require.NoError(t, <-errc)

	state, err := h.wizard.State(ctx, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"https://cdn.test/a.png",
		"https://cdn.test/b.png",
	}, state.Project.Images)
}

func TestPreviewRendersSessionProject(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.walkTo(t, "alice", models.StepPreview)

	html, err := h.wizard.Preview(ctx, "alice")
	require.NoError(t, err)
	assert.Contains(t, html, "Widget")
	assert.Contains(t, html, "<strong>great</strong>")
	assert.Contains(t, html, "2-5 Business Days")
}

func TestOperationsWithoutSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.wizard.Advance(ctx, "nobody", models.StepProductSource, models.ProjectPatch{})
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))

	_, err = h.wizard.Preview(ctx, "nobody")
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))
}
