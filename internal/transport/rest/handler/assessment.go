package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"assessd/internal/model"
	"assessd/internal/service"
	"assessd/internal/transport/rest/middleware"
)

// AssessmentHandler serves the candidate and recruiter assessment endpoints.
// Candidate routes act on the subject from the token; recruiter routes pass
// an empty subject, which the service treats as unrestricted.
type AssessmentHandler struct {
	svc *service.AssessmentService
	log *zap.Logger
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(svc *service.AssessmentService, logger *zap.Logger) *AssessmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentHandler{svc: svc, log: logger}
}

// StartRequest is the request body for starting a session
type StartRequest struct {
	Instrument model.InstrumentType `json:"instrument"`
}

// Catalog handles GET /v1/catalogs/{instrument}
func (h *AssessmentHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	instrument := model.InstrumentType(mux.Vars(r)["instrument"])
	c, err := h.svc.Catalog(r.Context(), instrument)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Start handles POST /v1/me/sessions
func (h *AssessmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	view, err := h.svc.Start(r.Context(), middleware.GetSubjectRef(r.Context()), req.Instrument)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Latest handles GET /v1/me/sessions/latest?instrument=
func (h *AssessmentHandler) Latest(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, middleware.GetSubjectRef(r.Context()))
}

// SubjectLatest handles GET /v1/recruiter/subjects/{subjectRef}/sessions/latest?instrument=
func (h *AssessmentHandler) SubjectLatest(w http.ResponseWriter, r *http.Request) {
	h.latest(w, r, mux.Vars(r)["subjectRef"])
}

func (h *AssessmentHandler) latest(w http.ResponseWriter, r *http.Request, subjectRef string) {
	instrument := model.InstrumentType(r.URL.Query().Get("instrument"))
	view, err := h.svc.LatestBySubject(r.Context(), subjectRef, instrument)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Get handles GET /v1/me/sessions/{id}
func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, middleware.GetSubjectRef(r.Context()))
}

// Inspect handles GET /v1/recruiter/sessions/{id}
func (h *AssessmentHandler) Inspect(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, "")
}

func (h *AssessmentHandler) get(w http.ResponseWriter, r *http.Request, subjectRef string) {
	view, err := h.svc.Get(r.Context(), subjectRef, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// Record handles PUT /v1/me/sessions/{id}/responses
func (h *AssessmentHandler) Record(w http.ResponseWriter, r *http.Request) {
	var resp model.Response
	if err := json.NewDecoder(r.Body).Decode(&resp); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.svc.RecordResponse(r.Context(), middleware.GetSubjectRef(r.Context()), mux.Vars(r)["id"], resp)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RemoveDescriptor handles DELETE /v1/me/sessions/{id}/descriptors/{block}/{itemId}
func (h *AssessmentHandler) RemoveDescriptor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	key := model.ResponseKey{
		Phase:  model.PhaseDescriptor,
		ItemID: vars["itemId"],
		Block:  model.Block(vars["block"]),
	}

	res, err := h.svc.RemoveResponse(r.Context(), middleware.GetSubjectRef(r.Context()), vars["id"], key)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Finalize handles POST /v1/me/sessions/{id}/finalize
func (h *AssessmentHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Finalize(r.Context(), middleware.GetSubjectRef(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Result handles GET /v1/me/sessions/{id}/result
func (h *AssessmentHandler) Result(w http.ResponseWriter, r *http.Request) {
	h.result(w, r, middleware.GetSubjectRef(r.Context()))
}

// InspectResult handles GET /v1/recruiter/sessions/{id}/result
func (h *AssessmentHandler) InspectResult(w http.ResponseWriter, r *http.Request) {
	h.result(w, r, "")
}

func (h *AssessmentHandler) result(w http.ResponseWriter, r *http.Request, subjectRef string) {
	res, err := h.svc.Result(r.Context(), subjectRef, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
