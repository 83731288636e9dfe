package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/duetapp/duet-sync/internal/domain"
	"github.com/duetapp/duet-sync/internal/usecase/match"
	"github.com/duetapp/duet-sync/internal/usecase/profile"
)

const maxPhotoBytes = 10 << 20 // 10 MB

type ProfileHandler struct {
	profileUseCase *profile.ProfileUseCase
}

func NewProfileHandler(profileUseCase *profile.ProfileUseCase) *ProfileHandler {
	return &ProfileHandler{
		profileUseCase: profileUseCase,
	}
}

// currentProfile pulls the resolved profile placed on the context by the
// auth middleware.
func currentProfile(c *gin.Context) (*domain.UserProfile, bool) {
	v, exists := c.Get("profile")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return nil, false
	}
	return v.(*domain.UserProfile), true
}

// Me handles GET /profile/me
func (h *ProfileHandler) Me(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, me)
}

// UpdateMyProfile handles PUT /profile/me
func (h *ProfileHandler) UpdateMyProfile(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}

	var req profile.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	updated, err := h.profileUseCase.UpdateProfile(c.Request.Context(), me.ID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// AddPhoto handles POST /profile/me/photos with a raw image body
func (h *ProfileHandler) AddPhoto(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPhotoBytes+1))
	if err != nil || len(data) == 0 || len(data) > maxPhotoBytes {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid photo payload"})
		return
	}

	updated, err := h.profileUseCase.AddPhoto(c.Request.Context(), me.ID, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// GetProfile handles GET /profile/:user_id and records the view
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	targetID := c.Param("user_id")

	target, err := h.profileUseCase.GetProfile(c.Request.Context(), targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.profileUseCase.RecordProfileView(c.Request.Context(), targetID, me.ID)
	c.JSON(http.StatusOK, target)
}

// ListVisible handles GET /profiles
func (h *ProfileHandler) ListVisible(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	profiles, err := h.profileUseCase.ListVisible(c.Request.Context(), me)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profiles)
}

// Matches handles GET /profiles/matches?limit=n
func (h *ProfileHandler) Matches(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	pool, err := h.profileUseCase.ListVisible(c.Request.Context(), me)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, match.TopMatches(me, pool, limit))
}

// AdminUpdateProfile handles PUT /admin/profiles/:user_id
func (h *ProfileHandler) AdminUpdateProfile(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}

	var req profile.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	updated, err := h.profileUseCase.AdminUpdateProfile(c.Request.Context(), me, c.Param("user_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// AdminDeleteProfile handles DELETE /admin/profiles/:user_id
func (h *ProfileHandler) AdminDeleteProfile(c *gin.Context) {
	me, ok := currentProfile(c)
	if !ok {
		return
	}
	if err := h.profileUseCase.DeleteProfile(c.Request.Context(), me, c.Param("user_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
