package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/raine/photo-lister/internal/apperr"
	"github.com/raine/photo-lister/internal/assets"
	"github.com/raine/photo-lister/internal/pipeline"
)

func (h *handler) uploadImage(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	fh, err := c.FormFile("image")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondError(c, apperr.TooLarge("image exceeds the upload limit"))
			return
		}
		respondError(c, apperr.Validation("multipart field \"image\" is required", err))
		return
	}
	if fh.Size > h.Pipeline.MaxUploadBytes() {
		respondError(c, apperr.TooLarge("image exceeds the upload limit"))
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, apperr.Internal("failed to open upload", err))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, apperr.Internal("failed to read upload", err))
		return
	}

	skipAI, _ := strconv.ParseBool(c.Query("skipAI"))
	res, err := h.Pipeline.Upload(c.Request.Context(), pipeline.UploadRequest{
		ListingID: id,
		Data:      data,
		MimeType:  fh.Header.Get("Content-Type"),
		SkipAI:    skipAI,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *handler) serveImage(c *gin.Context) {
	kind, ok := assets.ParseKind(c.Param("kind"))
	if !ok {
		respondError(c, apperr.NotFound("unknown image kind"))
		return
	}
	name := c.Param("name")

	var data []byte
	var err error
	if kind == assets.KindThumbnail {
		data, err = h.Images.ReadPreview(c.Request.Context(), name)
	} else {
		data, err = h.Images.Read(c.Request.Context(), kind, name)
	}
	switch {
	case errors.Is(err, assets.ErrNotFound), errors.Is(err, assets.ErrInvalidName):
		respondError(c, apperr.NotFound("image not found"))
		return
	case err != nil:
		respondError(c, apperr.Storage("failed to read image", err))
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}
