package evaluation

import (
	"context"
	"encoding/json"
	"net/http"

	apperrors "github.com/ricesearch/rice-eval/internal/pkg/errors"
	"github.com/ricesearch/rice-eval/internal/ranking"
	"github.com/ricesearch/rice-eval/internal/store"
)

// MaxRequestBytes bounds an evaluate request body.
const MaxRequestBytes = 64 << 20

// EvaluatePath is the route served by Handler.
const EvaluatePath = "/v1/evaluation/evaluate"

// Handler provides HTTP handlers for evaluation.
type Handler struct {
	evaluator      *Evaluator
	store          *store.Service
	defaultMetrics []string
}

// NewHandler creates a new evaluation handler. Requests without metrics use
// defaultMetrics.
func NewHandler(e *Evaluator, svc *store.Service, defaultMetrics []string) *Handler {
	return &Handler{evaluator: e, store: svc, defaultMetrics: defaultMetrics}
}

// RegisterRoutes registers evaluation routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+EvaluatePath, h.handleEvaluate)
}

// EvaluateRequest carries qrels and a run either inline or by stored name.
type EvaluateRequest struct {
	Qrels    map[string]map[string]float64 `json:"qrels,omitempty"`
	QrelsRef string                        `json:"qrels_ref,omitempty"`
	Run      map[string]map[string]float64 `json:"run,omitempty"`
	RunRef   string                        `json:"run_ref,omitempty"`
	RunName  string                        `json:"run_name,omitempty"`
	Metrics  []string                      `json:"metrics,omitempty"`
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBytes)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperrors.WriteError(w, apperrors.InvalidRequestError("invalid JSON body: "+err.Error()))
		return
	}

	ctx := r.Context()
	qrels, err := h.resolveQrels(ctx, &req)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	run, err := h.resolveRun(ctx, &req)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	metrics := req.Metrics
	if len(metrics) == 0 {
		metrics = h.defaultMetrics
	}

	report, err := h.evaluator.Evaluate(ctx, qrels, run, metrics...)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

func (h *Handler) resolveQrels(ctx context.Context, req *EvaluateRequest) (*ranking.Qrels, error) {
	switch {
	case req.Qrels != nil && req.QrelsRef != "":
		return nil, apperrors.ValidationError("qrels and qrels_ref are mutually exclusive")
	case req.QrelsRef != "":
		if h.store == nil {
			return nil, apperrors.UnavailableError("document storage is not configured", nil)
		}
		return h.store.GetQrels(ctx, req.QrelsRef)
	case req.Qrels != nil:
		return ranking.QrelsFromDict(req.Qrels)
	default:
		return nil, apperrors.ValidationError("qrels or qrels_ref is required")
	}
}

func (h *Handler) resolveRun(ctx context.Context, req *EvaluateRequest) (*ranking.Run, error) {
	var (
		run *ranking.Run
		err error
	)
	switch {
	case req.Run != nil && req.RunRef != "":
		return nil, apperrors.ValidationError("run and run_ref are mutually exclusive")
	case req.RunRef != "":
		if h.store == nil {
			return nil, apperrors.UnavailableError("document storage is not configured", nil)
		}
		run, err = h.store.GetRun(ctx, req.RunRef)
	case req.Run != nil:
		run, err = ranking.RunFromDict(req.Run)
	default:
		return nil, apperrors.ValidationError("run or run_ref is required")
	}
	if err != nil {
		return nil, err
	}
	if req.RunName != "" {
		run.Name = req.RunName
	}
	return run, nil
}
