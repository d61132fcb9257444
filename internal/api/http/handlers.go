package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/hb-chen/mkbi/internal/agent"
	"github.com/hb-chen/mkbi/internal/api"
	"github.com/hb-chen/mkbi/internal/llm"
	"github.com/hb-chen/mkbi/internal/skill"
	"github.com/hb-chen/mkbi/pkg/grpc/gateway"
	"github.com/hb-chen/mkbi/pkg/logger"
)

// RequestIDHeader carries the run id of an execute or interpret call.
const RequestIDHeader = "X-Request-Id"

// Handlers contains HTTP handlers
type Handlers struct {
	svc *api.Service
}

// NewHandlers creates new HTTP handlers
func NewHandlers(svc *api.Service) *Handlers {
	return &Handlers{svc: svc}
}

// ExecuteRequest is the body of the execute endpoints
type ExecuteRequest struct {
	Request    *string `json:"request"`
	OutputOnly bool    `json:"output_only"`
}

// InterpretRequest is the body of the interpret endpoints
type InterpretRequest struct {
	Request *string `json:"request"`
}

// ExecuteResponse is the full result of a run
type ExecuteResponse struct {
	*agent.Result
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// OutputOnlyResponse is the output-only result of a run
type OutputOnlyResponse struct {
	Output         string  `json:"output"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// InterpretResponse is the result of an interpret-only call
type InterpretResponse struct {
	Response       string  `json:"response"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// ReloadResponse lists the skills after a reload
type ReloadResponse struct {
	Skills []skill.Info `json:"skills"`
}

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Register mounts every route on gw. Routes that run the pipeline or change
// the registry require token when it is non-empty.
func (h *Handlers) Register(gw *gateway.Gateway, token string) {
	auth := BearerAuth(token)

	root := gw.Group("")
	root.GET("/health", h.HealthCheck)
	root.GET("/skills", h.ListSkills)
	root.POST("/skills/reload", h.ReloadSkills, auth)
	root.POST("/skills/{skill}/execute", h.Execute, auth)
	root.POST("/skills/{skill}/interpret", h.Interpret, auth)
	root.POST("/execute", h.Execute, auth)
	root.POST("/interpret", h.Interpret, auth)
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.svc.Health())
}

// ListSkills lists the active skills
func (h *Handlers) ListSkills(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	writeJSON(w, http.StatusOK, h.svc.ListSkills())
}

// ReloadSkills rescans the skills directory
func (h *Handlers) ReloadSkills(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	infos, err := h.svc.ReloadSkills()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{Skills: infos})
}

// Execute runs the full pipeline for the {skill} path parameter, or for
// the default skill on the unscoped route.
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req ExecuteRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := agent.WithRunID(r.Context(), requestID(w, r))
	if req.OutputOnly {
		out, err := h.svc.ExecuteOutput(ctx, params["skill"], *req.Request)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, OutputOnlyResponse{
			Output:         out.Output,
			ElapsedSeconds: api.Round(out.Elapsed.Seconds(), 3),
		})
		return
	}

	result, err := h.svc.Execute(ctx, params["skill"], *req.Request)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExecuteResponse{
		Result:         result,
		ElapsedSeconds: api.Round(result.Elapsed.Seconds(), 3),
	})
}

// Interpret runs only the Interpreter stage
func (h *Handlers) Interpret(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req InterpretRequest
	if !decodeInterpret(w, r, &req) {
		return
	}

	ctx := agent.WithRunID(r.Context(), requestID(w, r))
	out, err := h.svc.Interpret(ctx, params["skill"], *req.Request)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, InterpretResponse{
		Response:       out.Response,
		ElapsedSeconds: api.Round(out.Elapsed.Seconds(), 3),
	})
}

func decode(w http.ResponseWriter, r *http.Request, req *ExecuteRequest) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	if req.Request == nil {
		writeError(w, http.StatusUnprocessableEntity, "Field required: request")
		return false
	}
	return true
}

func decodeInterpret(w http.ResponseWriter, r *http.Request, req *InterpretRequest) bool {
	var body ExecuteRequest
	if !decode(w, r, &body) {
		return false
	}
	req.Request = body.Request
	return true
}

// requestID returns the caller's request id, or a new one, and echoes it.
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)
	return id
}

func writeServiceError(w http.ResponseWriter, err error) {
	var unknown *skill.UnknownSkillError
	var gwErr *llm.GatewayError
	switch {
	case errors.As(err, &unknown):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Skill not found: %s", unknown.Name))
	case errors.Is(err, api.ErrEmptyRequest):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &gwErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Errorf("Unhandled service error: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, ErrorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
