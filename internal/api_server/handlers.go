package apiserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/safestream/moderator/internal/events"
	"github.com/safestream/moderator/internal/moderation"
	"github.com/safestream/moderator/internal/moderation/jobs"
	"github.com/safestream/moderator/internal/store"
	"github.com/safestream/moderator/internal/store/model"
	"go.uber.org/zap"
)

type TriggerRequest struct {
	MediaLocator string `json:"mediaLocator" validate:"omitempty,url"`
}

type ReviewRequest struct {
	Approve  *bool  `json:"approve" validate:"required"`
	Reviewer string `json:"reviewer" validate:"required,max=255"`
}

// StatusRequest is an external status edit. The moderation status follows from it.
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending flagged safe failed"`
}

type SettingsRequest struct {
	MaxFileSizeMB      int      `json:"maxFileSizeMB"`
	MaxDurationSeconds float64  `json:"maxDurationSeconds"`
	SupportedFormats   []string `json:"supportedFormats"`
}

type handler struct {
	store    store.Store
	trigger  Trigger
	hub      *events.Hub
	validate *validator.Validate
}

func (h *handler) routes(router chi.Router) {
	router.Get("/health", h.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/jobs/{id}", h.getJob)
		r.Patch("/jobs/{id}", h.updateStatus)
		r.Post("/jobs/{id}/moderation", h.triggerModeration)
		r.Post("/jobs/{id}/review", h.review)
		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.updateSettings)
		r.Get("/progress", h.progress)
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "ok")
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	video, ok := h.lookup(w, r)
	if !ok {
		return
	}
	_ = render.Render(w, r, newVideoReply(video))
}

func (h *handler) triggerModeration(w http.ResponseWriter, r *http.Request) {
	video, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req TriggerRequest
	if err := decode(r, &req); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	if video.IsReviewed() && !force {
		_ = render.Render(w, r, newErrorReply(http.StatusConflict, errors.New(moderation.SkipReasonReviewed)))
		return
	}
	args := jobs.ModerationArgs{JobID: video.ID, MediaLocator: req.MediaLocator, Force: force}

	duplicate, err := h.trigger.Trigger(r.Context(), args)
	if err != nil {
		zap.S().Named("api_server").Errorw("failed to trigger moderation", "job_id", video.ID, "error", err)
		_ = render.Render(w, r, newErrorReply(http.StatusInternalServerError, err))
		return
	}

	zap.S().Named("api_server").Infow("moderation triggered", "job_id", video.ID, "force", force, "duplicate", duplicate)
	_ = render.Render(w, r, TriggerReply{JobID: video.ID, Duplicate: duplicate})
}

func (h *handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := moderation.ValidateJobID(id); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}

	var req StatusRequest
	if err := decode(r, &req); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}

	video, err := h.store.Video().SyncStatus(r.Context(), id, model.VideoStatus(req.Status))
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	zap.S().Named("api_server").Infow("status updated", "job_id", id, "status", video.Status, "moderation_status", video.ModerationStatus)
	_ = render.Render(w, r, newVideoReply(video))
}

func (h *handler) review(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := moderation.ValidateJobID(id); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}

	var req ReviewRequest
	if err := decode(r, &req); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}

	video, err := h.store.Video().RecordReview(r.Context(), id, *req.Approve, req.Reviewer)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	zap.S().Named("api_server").Infow("manual review recorded", "job_id", id, "approve", *req.Approve, "reviewer", req.Reviewer)
	_ = render.Render(w, r, newVideoReply(video))
}

func (h *handler) getSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings().Get(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	_ = render.Render(w, r, newSettingsReply(settings))
}

func (h *handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decode(r, &req); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return
	}

	settings, err := h.store.Settings().Update(r.Context(), model.SystemSettings{
		MaxFileSizeMB:      req.MaxFileSizeMB,
		MaxDurationSeconds: req.MaxDurationSeconds,
		SupportedFormats:   req.SupportedFormats,
	})
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	_ = render.Render(w, r, newSettingsReply(settings))
}

// lookup validates the id path parameter and loads the record. It writes the error reply itself.
func (h *handler) lookup(w http.ResponseWriter, r *http.Request) (*model.Video, bool) {
	id := chi.URLParam(r, "id")
	if err := moderation.ValidateJobID(id); err != nil {
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
		return nil, false
	}

	video, err := h.store.Video().Get(r.Context(), id)
	if err != nil {
		h.storeError(w, r, err)
		return nil, false
	}
	return video, true
}

func (h *handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *store.ErrInvalidSettings
	switch {
	case errors.Is(err, store.ErrRecordNotFound):
		_ = render.Render(w, r, newErrorReply(http.StatusNotFound, err))
	case errors.As(err, &invalid):
		_ = render.Render(w, r, newErrorReply(http.StatusBadRequest, err))
	default:
		zap.S().Named("api_server").Errorw("store error", "path", r.URL.Path, "error", err)
		_ = render.Render(w, r, newErrorReply(http.StatusInternalServerError, err))
	}
}

// decode reads an optional JSON body.
func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
