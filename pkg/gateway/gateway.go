// Package gateway is the HTTP surface over the generation engine. It
// accepts platform requests, translates them into routing requests, and
// keeps provider failure detail out of user-facing responses.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/scholaris-edu/scholaris/pkg/catalog"
	"github.com/scholaris-edu/scholaris/pkg/models"
	"github.com/scholaris-edu/scholaris/pkg/orchestrator"
)

// failureMessage is the only error text end users ever see for a failed
// generation. Everything diagnostic goes to the logs and the audit trail.
const failureMessage = "could not generate a response, please try again"

// Server exposes the engine over HTTP.
type Server struct {
	listen string
	engine *orchestrator.Engine
	mux    *http.ServeMux
}

// New creates a gateway Server listening on the given address.
func New(listen string, engine *orchestrator.Engine) *Server {
	s := &Server{
		listen: listen,
		engine: engine,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/generate", s.handleGenerate)
	s.mux.HandleFunc("/v1/usage/summary", s.handleUsageSummary)
	s.mux.HandleFunc("/v1/budget/status", s.handleBudgetStatus)
	s.mux.HandleFunc("/v1/models", s.handleModels)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the gateway with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("scholaris gateway listening on %s", s.listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// generateRequest is the wire shape of POST /v1/generate.
type generateRequest struct {
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	Context      string `json:"context,omitempty"`

	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	TaskType   string `json:"task_type"`
	Complexity string `json:"complexity,omitempty"`

	StructuredOutput bool   `json:"structured_output,omitempty"`
	Multimodal       bool   `json:"multimodal,omitempty"`
	MaxOutputTokens  int    `json:"max_output_tokens,omitempty"`
	ForcedModelID    string `json:"forced_model_id,omitempty"`
	WrapKey          string `json:"wrap_key,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	r.Body.Close()

	req, err := body.toRoutingRequest()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.engine.Generate(r.Context(), req)
	if err != nil {
		var unknown *catalog.UnknownModelError
		if errors.As(err, &unknown) {
			writeJSONError(w, http.StatusBadRequest, unknown.Error())
			return
		}
		var exhausted *orchestrator.ExhaustedError
		if errors.As(err, &exhausted) {
			log.Printf("[gateway] generate for user %s failed: %v", body.UserID, exhausted)
			writeJSONError(w, http.StatusBadGateway, failureMessage)
			return
		}
		log.Printf("[gateway] generate for user %s failed: %v", body.UserID, err)
		writeJSONError(w, http.StatusInternalServerError, failureMessage)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (b generateRequest) toRoutingRequest() (models.RoutingRequest, error) {
	if b.Prompt == "" {
		return models.RoutingRequest{}, fmt.Errorf("prompt is required")
	}
	if b.UserID == "" {
		return models.RoutingRequest{}, fmt.Errorf("user_id is required")
	}
	role, err := models.ParseRole(b.Role)
	if err != nil {
		return models.RoutingRequest{}, err
	}
	task, err := models.ParseTaskType(b.TaskType)
	if err != nil {
		return models.RoutingRequest{}, err
	}
	complexity := models.ComplexityMedium
	if b.Complexity != "" {
		if complexity, err = models.ParseComplexity(b.Complexity); err != nil {
			return models.RoutingRequest{}, err
		}
	}

	return models.RoutingRequest{
		Prompt:                   b.Prompt,
		SystemPrompt:             b.SystemPrompt,
		ContextText:              b.Context,
		UserID:                   b.UserID,
		Role:                     role,
		TaskType:                 task,
		Complexity:               complexity,
		RequiresStructuredOutput: b.StructuredOutput,
		RequiresMultimodal:       b.Multimodal,
		MaxOutputTokens:          b.MaxOutputTokens,
		ForcedModelID:            b.ForcedModelID,
		WrapKey:                  b.WrapKey,
	}, nil
}

func (s *Server) handleUsageSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	period := models.SummaryPeriod(r.URL.Query().Get("period"))
	if period == "" {
		period = models.PeriodDaily
	}
	if period != models.PeriodDaily && period != models.PeriodMonthly {
		writeJSONError(w, http.StatusBadRequest, "period must be daily or monthly")
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Ledger().Summary(period))
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	role, err := models.ParseRole(r.URL.Query().Get("role"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.engine.Ledger().Status(userID, role))
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": s.engine.Catalog().List()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[gateway] write response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`+"\n", message, code)
}
