package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dfryer1193/photolog/api"
	"github.com/dfryer1193/photolog/photos/application"
	"github.com/dfryer1193/photolog/photos/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// PhotoCatalog is the part of the catalog service the HTTP adapter uses
type PhotoCatalog interface {
	AddPhoto(ctx context.Context, p *domain.Photo) (int64, error)
	EditPhoto(ctx context.Context, id int64, title, description string) (bool, error)
	RemovePhoto(ctx context.Context, id int64) (bool, error)
	ClearCatalog(ctx context.Context) (int64, error)
	ListPhotos(ctx context.Context) ([]domain.Photo, error)
	GetPhoto(ctx context.Context, id int64) (domain.Photo, error)
	Present(p domain.Photo) (application.PhotoView, error)
}

var _ PhotoCatalog = (*application.PhotoService)(nil)

type PhotoHandler struct {
	catalog PhotoCatalog
	kind    domain.PayloadKind
}

func NewPhotoHandler(catalog PhotoCatalog, kind domain.PayloadKind) *PhotoHandler {
	if kind == "" {
		kind = domain.PayloadReference
	}
	return &PhotoHandler{
		catalog: catalog,
		kind:    kind,
	}
}

func (h *PhotoHandler) ListPhotos(c *gin.Context) {
	photos, err := h.catalog.ListPhotos(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]api.Photo, 0, len(photos))
	for _, p := range photos {
		dto, err := h.toAPI(p)
		if err != nil {
			respondError(c, err)
			return
		}
		resp = append(resp, dto)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *PhotoHandler) GetPhoto(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}

	p, err := h.catalog.GetPhoto(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	dto, err := h.toAPI(p)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto)
}

// GetPayload serves the stored reference or image bytes as-is
func (h *PhotoHandler) GetPayload(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}

	p, err := h.catalog.GetPhoto(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	payload := []byte(p.Reference)
	c.Data(http.StatusOK, mimetype.Detect(payload).String(), payload)
}

func (h *PhotoHandler) CreatePhoto(c *gin.Context) {
	var req api.PhotoProto
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	reference := req.Reference
	if h.kind == domain.PayloadBlob {
		reference = string(req.Image)
	}
	photo := domain.NewPhoto(reference, req.Title, req.Description)

	if req.CreatedAt != "" {
		createdAt, err := time.Parse(time.RFC3339Nano, req.CreatedAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, api.Error{Error: fmt.Sprintf("invalid created_at: %v", err)})
			return
		}
		photo.CreatedAt = createdAt
	}

	id, err := h.catalog.AddPhoto(c.Request.Context(), photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, api.Created{ID: id})
}

func (h *PhotoHandler) UpdatePhoto(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}

	var req api.PhotoEdit
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	changed, err := h.catalog.EditPhoto(c.Request.Context(), id, req.Title, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.RowsAffected{RowsAffected: boolToRows(changed)})
}

func (h *PhotoHandler) DeletePhoto(c *gin.Context) {
	id, ok := photoID(c)
	if !ok {
		return
	}

	removed, err := h.catalog.RemovePhoto(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.RowsAffected{RowsAffected: boolToRows(removed)})
}

func (h *PhotoHandler) DeleteAllPhotos(c *gin.Context) {
	removed, err := h.catalog.ClearCatalog(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.RowsAffected{RowsAffected: removed})
}

func (h *PhotoHandler) toAPI(p domain.Photo) (api.Photo, error) {
	view, err := h.catalog.Present(p)
	if err != nil {
		return api.Photo{}, err
	}

	dto := api.Photo{
		ID:              view.ID,
		PayloadURL:      fmt.Sprintf("/photos/v1/%d/payload", view.ID),
		Title:           view.Title,
		DisplayTitle:    view.DisplayTitle,
		Description:     view.Description,
		DescriptionHTML: view.DescriptionHTML,
		Snippet:         view.Snippet,
		CreatedAt:       view.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	// image bytes are only served through the payload endpoint
	if h.kind == domain.PayloadReference {
		dto.Reference = view.Reference
	}
	return dto, nil
}

func photoID(c *gin.Context) (int64, bool) {
	raw := c.Param("photoId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, api.Error{Error: fmt.Sprintf("invalid photo id %q", raw)})
		return 0, false
	}
	return id, true
}

func boolToRows(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStorageConstraint):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(status, api.Error{Error: http.StatusText(status)})
		return
	}
	c.JSON(status, api.Error{Error: err.Error()})
}
