package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

// ListExperiments lists the account's experiments, optionally by ?status=.
func (h *Handler) ListExperiments(c *gin.Context) {
	status := schema.ExperimentStatus(c.Query("status"))
	if status != "" {
		if _, ok := schema.ValidExperimentStatuses[status]; !ok {
			respondError(c, errs.Validation("invalid status filter").WithDetails(map[string]any{"status": status}))
			return
		}
	}
	acct, _ := GetAccount(c)

	experiments, err := h.store.ListExperiments(c.Request.Context(), acct.ID, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"experiments": experiments})
}

// CreateExperiment creates a draft experiment.
func (h *Handler) CreateExperiment(c *gin.Context) {
	var req createExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}
	if err := validateSchedule(req.StartDate, req.EndDate); err != nil {
		respondError(c, err)
		return
	}
	acct, _ := GetAccount(c)

	exp, err := h.store.CreateExperiment(c.Request.Context(), req.toExperiment(acct.ID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

// GetExperiment returns one experiment with its variants.
func (h *Handler) GetExperiment(c *gin.Context) {
	id, err := experimentID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	acct, _ := GetAccount(c)
	ctx := c.Request.Context()

	exp, err := h.store.GetExperiment(ctx, acct.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	variants, err := h.store.ListVariants(ctx, exp.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, schema.RunningExperiment{Experiment: exp, Variants: variants})
}

// UpdateExperiment applies a partial update. A status in the body goes
// through the same transition rules as the status endpoint.
func (h *Handler) UpdateExperiment(c *gin.Context) {
	id, err := experimentID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req updateExperimentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}
	acct, _ := GetAccount(c)
	ctx := c.Request.Context()

	cur, err := h.store.GetExperiment(ctx, acct.ID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	next := req.apply(cur)
	if err := validateSchedule(next.StartDate, next.EndDate); err != nil {
		respondError(c, err)
		return
	}

	updated, err := h.store.UpdateExperiment(ctx, next)
	if err != nil {
		respondError(c, err)
		return
	}
	if req.Status != nil {
		updated, err = h.store.UpdateExperimentStatus(ctx, acct.ID, id, schema.ExperimentStatus(*req.Status))
		if err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, updated)
}

// SetStatus moves an experiment through its lifecycle.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := experimentID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}
	acct, _ := GetAccount(c)

	exp, err := h.store.UpdateExperimentStatus(c.Request.Context(), acct.ID, id, schema.ExperimentStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

// AddVariant adds a variant to an experiment.
func (h *Handler) AddVariant(c *gin.Context) {
	id, err := experimentID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req variantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}
	acct, _ := GetAccount(c)

	v, err := h.store.AddVariant(c.Request.Context(), acct.ID, req.toVariant(id))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}
