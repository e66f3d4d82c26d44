package controllers

import (
	"net/http"

	"github.com/shashiranjanraj/lister/app/models"
	"github.com/shashiranjanraj/lister/app/services"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/response"
)

type UsageController struct {
	usage *services.UsageService
}

func NewUsageController(usage *services.UsageService) *UsageController {
	return &UsageController{usage: usage}
}

// Show GET /api/usage
func (c *UsageController) Show(w http.ResponseWriter, r *http.Request) {
	snap, err := c.usage.Usage(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, snap)
}

type subscribeInput struct {
	Plan string `json:"plan" validate:"required,oneof=free pro enterprise"`
}

// Subscribe POST /api/subscription. Checkout is mocked: the plan is
// switched immediately.
func (c *UsageController) Subscribe(w http.ResponseWriter, r *http.Request) {
	var in subscribeInput
	if !decode(w, r, &in) {
		return
	}
	sub, err := c.usage.SetPlan(r.Context(), userID(r), models.Plan(in.Plan))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	logger.WithCtx(r.Context()).Info("subscription: plan changed", "plan", sub.Plan)

	snap, err := c.usage.Usage(r.Context(), userID(r))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.Success(w, snap)
}
