package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixnest/internal/domain"
	"pixnest/internal/service"
)

func (h *Handler) updateProfile(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	targetID, ok := parseID(c)
	if !ok {
		return
	}
	if targetID != userID {
		h.fail(c, fmt.Errorf("update user %d: %w", targetID, domain.ErrForbidden))
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.media.MaxBytes()+multipartOverhead)

	var changes service.IdentityChanges
	form := gin.H{}
	for name, field := range map[string]**string{
		"username":    &changes.Username,
		"email":       &changes.Email,
		"fullname":    &changes.FullName,
		"description": &changes.Description,
	} {
		if value, present := c.GetPostForm(name); present {
			*field = &value
			form[name] = value
		}
	}

	var avatar *service.AvatarUpload
	fileHeader, err := c.FormFile("image")
	switch {
	case err == nil:
		file, err := fileHeader.Open()
		if err != nil {
			h.failForm(c, fmt.Errorf("open avatar: %w", err), form)
			return
		}
		defer file.Close()
		avatar = &service.AvatarUpload{
			Body:        file,
			Size:        fileHeader.Size,
			ContentType: fileHeader.Header.Get("Content-Type"),
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.failForm(c, formFileError(err), form)
		return
	}

	if err := h.profile.UpdateProfile(c.Request.Context(), userID, changes, avatar); err != nil {
		h.failForm(c, err, form)
		return
	}
	c.Redirect(http.StatusSeeOther, "/profile")
}

func (h *Handler) removeAvatar(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	targetID, ok := parseID(c)
	if !ok {
		return
	}
	if targetID != userID {
		h.fail(c, fmt.Errorf("reset avatar of user %d: %w", targetID, domain.ErrForbidden))
		return
	}

	if err := h.profile.ResetAvatar(c.Request.Context(), userID); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/edit")
}

func (h *Handler) ownProfile(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	h.writeProfile(c, userID, true)
}

func (h *Handler) userProfile(c *gin.Context) {
	userID, ok := parseID(c)
	if !ok {
		return
	}
	h.writeProfile(c, userID, false)
}

// writeProfile joins the user with its posts. Email is only shown to its owner.
func (h *Handler) writeProfile(c *gin.Context, userID int64, self bool) {
	ctx := c.Request.Context()
	user, err := h.credentials.GetUser(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	posts, err := h.posts.ListByOwner(ctx, userID)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := userToResponse(*user, posts)
	if !self {
		resp.Email = ""
	}
	c.JSON(http.StatusOK, resp)
}
