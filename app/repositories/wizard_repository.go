package repositories

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/pkg/errs"
	"github.com/shashiranjanraj/lister/pkg/kv"
)

func wizardKey(userID string) string { return "wizard:" + userID }

// WizardRepository stores the single wizard session of each user.
type WizardRepository struct {
	store kv.Store
}

func NewWizardRepository(store kv.Store) *WizardRepository {
	return &WizardRepository{store: store}
}

// Get returns the session or a not_found error.
func (r *WizardRepository) Get(ctx context.Context, userID string) (models.WizardState, error) {
	var st models.WizardState
	err := kv.GetJSON(ctx, r.store, wizardKey(userID), &st)
	if errors.Is(err, kv.ErrNotFound) {
		return models.WizardState{}, errs.NotFound("wizard session")
	}
	if err != nil {
		return models.WizardState{}, errs.Wrap(err, errs.CodeInternal, "load wizard session")
	}
	return st, nil
}

func (r *WizardRepository) Put(ctx context.Context, st models.WizardState) error {
	st.StepName = st.Step.String()
	if err := kv.SetJSON(ctx, r.store, wizardKey(st.UserID), st); err != nil {
		return errs.Wrap(err, errs.CodeInternal, "save wizard session")
	}
	return nil
}

func (r *WizardRepository) Delete(ctx context.Context, userID string) error {
	if err := r.store.Delete(ctx, wizardKey(userID)); err != nil {
		return errs.Wrap(err, errs.CodeInternal, "delete wizard session")
	}
	return nil
}
