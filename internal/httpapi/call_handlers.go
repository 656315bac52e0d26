package httpapi

import (
	"net/http"
	"strings"

	"expertassist/internal/calls"
	"expertassist/internal/telephony"

	"github.com/gin-gonic/gin"
)

type initiateRequest struct {
	ExpertID     string   `json:"expertId"`
	Goal         string   `json:"goal"`
	ContextLinks []string `json:"contextLinks"`
	ContextText  string   `json:"contextText"`
}

func (h Handlers) InitiateCall(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Goal) == "" || strings.TrimSpace(req.ExpertID) == "" {
		fail(c, http.StatusBadRequest, "Goal and expert ID are required")
		return
	}
	call, err := h.Calls.Initiate(c.Request.Context(), userID, calls.InitiateRequest{
		ExpertID:     req.ExpertID,
		Goal:         req.Goal,
		ContextLinks: req.ContextLinks,
		ContextText:  req.ContextText,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, call)
}

func (h Handlers) ListCalls(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var f calls.ListFilter
	if raw := c.Query("status"); raw != "" {
		st, err := calls.ParseStatus(raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "Unknown call status")
			return
		}
		f.Status = st
	}
	list, err := h.Calls.List(c.Request.Context(), userID, f)
	if err != nil {
		writeError(c, err)
		return
	}
	okList(c, list)
}

func (h Handlers) GetCall(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	call, err := h.Calls.Get(c.Request.Context(), userID, c.Param("callId"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, call)
}

func (h Handlers) GetTranscript(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id := c.Param("callId")
	t, err := h.Calls.Transcript(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, gin.H{"callId": id, "transcript": t})
}

func (h Handlers) GetRecording(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id := c.Param("callId")
	url, err := h.Calls.Recording(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, gin.H{"callId": id, "recordingUrl": url})
}

func (h Handlers) EndCall(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	call, err := h.Calls.End(c.Request.Context(), userID, c.Param("callId"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, call)
}

func (h Handlers) RetryCall(c *gin.Context) {
	userID, authed := currentUser(c)
	if !authed {
		return
	}
	call, err := h.Calls.Retry(c.Request.Context(), userID, c.Param("callId"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, call)
}

// GetProviderStatus proxies the provider's view of the call, which may be
// ahead of the stored status while the lifecycle is running.
func (h Handlers) GetProviderStatus(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	call, err := h.Calls.Get(ctx, userID, c.Param("callId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if call.ProviderCallSID == "" || h.Provider == nil {
		fail(c, http.StatusNotFound, "Call has not been placed yet")
		return
	}
	st, err := h.Provider.FetchStatus(ctx, call.ProviderCallSID)
	if err != nil {
		writeError(c, err)
		return
	}
	status := call.Status
	if translated, known := telephony.TranslateStatus(st.Status); known {
		status = translated
	}
	ok200(c, gin.H{"callId": call.ID, "status": status, "provider": st})
}
