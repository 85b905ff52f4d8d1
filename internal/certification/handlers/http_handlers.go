package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gartstein/certify/internal/certification/auth"
	e "github.com/gartstein/certify/internal/certification/errors"
	"github.com/gartstein/certify/internal/certification/models"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// maxBodyBytes bounds request bodies; attachments travel inline as base64.
const maxBodyBytes = 50 << 20

// CertificationController defines the workflow operations the HTTP
// handlers invoke.
type CertificationController interface {
	Submit(ctx context.Context, draft *models.Draft, actor models.Actor) (*models.Certification, error)
	Edit(ctx context.Context, id uint, draft *models.Draft, actor models.Actor) (*models.Certification, error)
	Decide(ctx context.Context, id uint, actor models.Actor, action models.StageStatus, comment string) (*models.Certification, error)
	Get(ctx context.Context, id uint) (*models.Certification, error)
	List(ctx context.Context) ([]*models.Certification, error)
	Delete(ctx context.Context, id uint, actor models.Actor) error
}

// CertificationHandler serves the certification routes on a gateway mux.
type CertificationHandler struct {
	controller CertificationController
	logger     *zap.Logger
	mux        *runtime.ServeMux
}

// NewCertificationHandler creates a new handler.
func NewCertificationHandler(controller CertificationController, logger *zap.Logger) *CertificationHandler {
	return &CertificationHandler{
		controller: controller,
		logger:     logger.Named("http_handler"),
	}
}

// Register binds every route to mux. Errors are rendered with mux's error
// handler.
func (h *CertificationHandler) Register(mux *runtime.ServeMux) error {
	h.mux = mux
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/certifications", h.submit},
		{http.MethodGet, "/v1/certifications", h.list},
		{http.MethodGet, "/v1/certifications/{id}", h.get},
		{http.MethodPut, "/v1/certifications/{id}", h.edit},
		{http.MethodDelete, "/v1/certifications/{id}", h.delete},
		{http.MethodPost, "/v1/certifications/{id}/decision", h.decide},
		{http.MethodGet, "/v1/me", h.me},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, rt.handler); err != nil {
			return fmt.Errorf("failed to register %s %s: %w", rt.method, rt.pattern, err)
		}
	}
	return nil
}

func (h *CertificationHandler) submit(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	created, err := h.controller.Submit(r.Context(), draft, actor)
	if err != nil {
		h.writeError(w, r, h.mapServiceError(err))
		return
	}
	h.writeJSON(w, http.StatusCreated, submitResponse{ID: created.ID, SerialNumber: created.SerialNumber})
}

func (h *CertificationHandler) edit(w http.ResponseWriter, r *http.Request, params map[string]string) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, params)
	if !ok {
		return
	}
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}

	updated, err := h.controller.Edit(r.Context(), id, draft, actor)
	if err != nil {
		h.writeError(w, r, h.mapServiceError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, modelToResponse(updated))
}

func (h *CertificationHandler) decide(w http.ResponseWriter, r *http.Request, params map[string]string) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, params)
	if !ok {
		return
	}

	var req decisionRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.controller.Decide(r.Context(), id, actor, models.StageStatus(req.Action), req.Comment)
	if err != nil {
		h.writeError(w, r, h.mapServiceError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, modelToResponse(updated))
}

func (h *CertificationHandler) get(w http.ResponseWriter, r *http.Request, params map[string]string) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	id, ok := h.pathID(w, r, params)
	if !ok {
		return
	}

	c, err := h.controller.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, h.mapServiceError(err))
		return
	}
	h.writeJSON(w, http.StatusOK, modelToResponse(c))
}

func (h *CertificationHandler) list(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	list, err := h.controller.List(r.Context())
	if err != nil {
		h.writeError(w, r, h.mapServiceError(err))
		return
	}
	out := make([]*certificationResponse, 0, len(list))
	for _, c := range list {
		out = append(out, modelToResponse(c))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *CertificationHandler) delete(w http.ResponseWriter, r *http.Request, params map[string]string) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r, params)
	if !ok {
		return
	}

	if err := h.controller.Delete(r.Context(), id, actor); err != nil {
		h.writeError(w, r, h.mapServiceError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// me reports the caller carried by the token.
func (h *CertificationHandler) me(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, actorResponse{Username: actor.Identity, Name: actor.Name, Role: string(actor.Role)})
}

func (h *CertificationHandler) actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, r, statusError(codes.Unauthenticated, "authentication required", "unauthenticated", nil))
	}
	return actor, ok
}

func (h *CertificationHandler) pathID(w http.ResponseWriter, r *http.Request, params map[string]string) (uint, bool) {
	id, err := strconv.ParseUint(params["id"], 10, 0)
	if err != nil || id == 0 {
		h.writeError(w, r, statusError(codes.InvalidArgument, "invalid certification id", "invalid_input", nil))
		return 0, false
	}
	return uint(id), true
}

func (h *CertificationHandler) decodeDraft(w http.ResponseWriter, r *http.Request) (*models.Draft, bool) {
	var req certificationRequest
	if !h.decode(w, r, &req) {
		return nil, false
	}
	draft, err := requestToDraft(&req)
	if err != nil {
		h.writeError(w, r, h.mapServiceError(err))
		return nil, false
	}
	return draft, true
}

func (h *CertificationHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.logger.Debug("Malformed request body", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeError(w, r, h.mapServiceError(fmt.Errorf("%w: malformed request body", e.ErrInvalidInput)))
		return false
	}
	return true
}

func (h *CertificationHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

func (h *CertificationHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	_, outbound := runtime.MarshalerForRequest(h.mux, r)
	runtime.HTTPError(r.Context(), h.mux, outbound, w, r, err)
}
