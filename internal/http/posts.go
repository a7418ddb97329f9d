package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pixnest/internal/domain"
)

// room for multipart boundaries and the non-file fields
const multipartOverhead = 1 << 20

func (h *Handler) upload(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.media.MaxBytes()+multipartOverhead)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.fail(c, formFileError(err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("open upload: %w", err))
		return
	}
	defer file.Close()

	ref, err := h.media.Ingest(ctx, file, fileHeader.Size, fileHeader.Header.Get("Content-Type"), h.opts.PostFolder)
	if err != nil {
		h.fail(c, err)
		return
	}

	post, err := h.posts.Create(ctx, userID, ref, c.PostForm("filecaption"))
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":    userID,
			"object_key": ref.Key,
		}).Warn("post not created; uploaded object left unreferenced")
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, postToResponse(*post))
}

func (h *Handler) deletePost(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	postID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), postID, userID); err != nil {
		h.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/profile")
}

func (h *Handler) getPost(c *gin.Context) {
	postID, ok := parseID(c)
	if !ok {
		return
	}
	post, err := h.posts.Get(c.Request.Context(), postID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, postToResponse(*post))
}

func (h *Handler) feed(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	items, err := h.posts.Feed(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]FeedItemResponse, len(items))
	for i := range items {
		resp[i] = feedItemToResponse(items[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) unreferencedObjects(c *gin.Context) {
	if _, ok := h.authenticate(c); !ok {
		return
	}
	if h.auditor == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage audit not configured"})
		return
	}

	keys, err := h.auditor.UnreferencedObjects(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// deleteUnreferencedObjects sweeps unreferenced objects older than the
// cleanup grace, or the duration given as ?older_than=.
func (h *Handler) deleteUnreferencedObjects(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}
	if h.auditor == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage audit not configured"})
		return
	}

	olderThan := h.opts.CleanupGrace
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid older_than duration"})
			return
		}
		olderThan = d
	}

	keys, err := h.auditor.DeleteUnreferenced(c.Request.Context(), olderThan)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"deleted":    len(keys),
		"older_than": olderThan.String(),
	}).Info("unreferenced objects cleaned up")
	if keys == nil {
		keys = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"deleted": keys})
}

// formFileError classifies a failed multipart file lookup.
func formFileError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("request body over %d bytes: %w", tooLarge.Limit, domain.ErrPayloadTooLarge)
	}
	return fmt.Errorf("no file uploaded: %w", domain.ErrInvalidInput)
}
