package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangsam/exprora/internal/contract"
	"github.com/huangsam/exprora/internal/errs"
	"github.com/huangsam/exprora/schema"
)

// VisitorInit upserts the visitor row for the SDK's first call.
func (h *Handler) VisitorInit(c *gin.Context) {
	var req visitorInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}
	acct, _ := GetAccount(c)

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.Request.UserAgent()
	}
	ip := req.IPAddress
	if ip == "" {
		ip = c.ClientIP()
	}

	if _, err := h.store.UpsertVisitor(c.Request.Context(), schema.Visitor{
		AccountID: acct.ID,
		VisitorID: req.VisitorID,
		SessionID: req.SessionID,
		UserAgent: userAgent,
		IPAddress: ip,
	}); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ActiveExperiments resolves the visitor against every running experiment.
// Experiments that fail to resolve are left out and the call still succeeds.
func (h *Handler) ActiveExperiments(c *gin.Context) {
	var q activeExperimentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindingError(err))
		return
	}
	acct, _ := GetAccount(c)

	visitor := schema.VisitorContext{
		VisitorID:  q.VisitorID,
		URL:        q.URL,
		UserAgent:  c.Request.UserAgent(),
		Country:    c.GetHeader(HeaderCountry),
		Attributes: visitorAttributes(c),
	}
	result, err := h.engine.ResolveActive(c.Request.Context(), acct.ID, visitor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"experiments": result.Experiments})
}

// visitorAttributes collects the remaining query parameters for custom
// targeting rules. Repeated parameters keep their first value.
func visitorAttributes(c *gin.Context) map[string]string {
	attrs := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if key == "visitor_id" || key == "url" || len(values) == 0 {
			continue
		}
		attrs[key] = values[0]
	}
	return attrs
}

// TrackEvent appends one event.
func (h *Handler) TrackEvent(c *gin.Context) {
	var req trackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}
	acct, _ := GetAccount(c)

	if _, err := h.store.RecordEvent(c.Request.Context(), req.toEvent(acct.ID)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ExperimentResults returns per-variant statistics for one experiment.
func (h *Handler) ExperimentResults(c *gin.Context) {
	id, err := experimentID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var q resultsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, bindingError(err))
		return
	}
	r, err := q.dateRange(time.Now())
	if err != nil {
		respondError(c, err)
		return
	}
	acct, _ := GetAccount(c)

	results, err := h.engine.GetResults(c.Request.Context(), acct.ID, id, r)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (q resultsQuery) dateRange(now time.Time) (schema.DateRange, error) {
	var r schema.DateRange
	if q.StartDate != "" {
		t, err := contract.ParseTimeInput(q.StartDate, now)
		if err != nil {
			return r, errs.Validation("invalid start_date").WithDetails(map[string]any{"start_date": q.StartDate})
		}
		r.Start = t
	}
	if q.EndDate != "" {
		t, err := contract.ParseTimeInput(q.EndDate, now)
		if err != nil {
			return r, errs.Validation("invalid end_date").WithDetails(map[string]any{"end_date": q.EndDate})
		}
		r.End = t
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return r, errs.Validation("start_date must not be after end_date")
	}
	return r, nil
}

// experimentID parses the :id path parameter.
func experimentID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Validation("invalid experiment id").WithDetails(map[string]any{"id": c.Param("id")})
	}
	return id, nil
}
