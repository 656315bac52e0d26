package httpapi

import (
	"errors"
	"net/http"

	"expertassist/internal/auth"
	"expertassist/internal/users"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=6"`
	Company   string `json:"company"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type sessionResponse struct {
	auth.TokenPair
	User users.User `json:"user"`
}

func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Users.Register(c.Request.Context(), users.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Company:   req.Company,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	h.session(c, http.StatusCreated, u)
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	u, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.session(c, http.StatusOK, u)
}

// Refresh trades a refresh token for a new pair.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
	if err != nil {
		fail(c, http.StatusUnauthorized, "Authentication failed. Invalid token.")
		return
	}
	u, err := h.Users.Get(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found.")
			return
		}
		writeError(c, err)
		return
	}
	h.session(c, http.StatusOK, u)
}

func (h Handlers) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	ok200(c, u)
}

func (h Handlers) session(c *gin.Context, status int, u users.User) {
	pair, err := h.Auth.IssuePair(h.now(), u.ID, u.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, status, sessionResponse{TokenPair: pair, User: u})
}
