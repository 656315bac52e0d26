package httpapi

import (
	"net/http"

	"expertassist/internal/audit"
	"expertassist/internal/experts"
	"expertassist/pkg/logger"

	"github.com/gin-gonic/gin"
)

type expertRequest struct {
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phoneNumber" binding:"required,phone"`
	Category    string `json:"category" binding:"omitempty,expert_category"`
	Company     string `json:"company"`
	Notes       string `json:"notes"`
}

// expertPatch carries a partial update; absent fields keep their value.
type expertPatch struct {
	Name        *string `json:"name" binding:"omitempty,min=1"`
	PhoneNumber *string `json:"phoneNumber" binding:"omitempty,phone"`
	Category    *string `json:"category" binding:"omitempty,expert_category"`
	Company     *string `json:"company"`
	Notes       *string `json:"notes"`
}

func (p expertPatch) apply(cur experts.Expert) experts.Input {
	in := experts.Input{
		Name:        cur.Name,
		PhoneNumber: cur.PhoneNumber,
		Category:    cur.Category,
		Company:     cur.Company,
		Notes:       cur.Notes,
	}
	if p.Name != nil {
		in.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		in.PhoneNumber = *p.PhoneNumber
	}
	if p.Category != nil {
		in.Category = experts.Category(*p.Category)
	}
	if p.Company != nil {
		in.Company = *p.Company
	}
	if p.Notes != nil {
		in.Notes = *p.Notes
	}
	return in
}

func (h Handlers) CreateExpert(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	var req expertRequest
	if !bindJSON(c, &req) {
		return
	}
	e, err := h.Experts.Create(c.Request.Context(), userID, experts.Input{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Category:    experts.Category(req.Category),
		Company:     req.Company,
		Notes:       req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, e)
}

func (h Handlers) ListExperts(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	cat := experts.Category(c.Query("category"))
	if cat != "" && !cat.Valid() {
		fail(c, http.StatusBadRequest, "Unknown expert category")
		return
	}
	list, err := h.Experts.List(c.Request.Context(), userID, cat)
	if err != nil {
		writeError(c, err)
		return
	}
	okList(c, list)
}

func (h Handlers) GetExpert(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	e, err := h.Experts.Get(c.Request.Context(), userID, c.Param("expertId"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, e)
}

func (h Handlers) UpdateExpert(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var patch expertPatch
	if !bindJSON(c, &patch) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("expertId")
	cur, err := h.Experts.Get(ctx, userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	e, err := h.Experts.Update(ctx, userID, id, patch.apply(cur))
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, e)
}

func (h Handlers) DeleteExpert(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("expertId")
	if err := h.Experts.Delete(ctx, userID, id); err != nil {
		writeError(c, err)
		return
	}
	if h.Audit != nil {
		if err := h.Audit.LogExpertEvent(ctx, audit.EventTypeExpertDeleted, userID, c.ClientIP(), id, "expert deleted"); err != nil {
			logger.FromGin(c).Warn("audit append failed", "expert_id", id, "err", err)
		}
	}
	ok200(c, gin.H{})
}
