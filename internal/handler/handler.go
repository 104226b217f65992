package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/angeloszaimis/breakerbox/internal/circuitbreaker"
	"github.com/angeloszaimis/breakerbox/internal/registry"
)

// BreakerHandler serves the admin API for a fixed set of boxes. The box
// table is read-only after construction; all mutation happens inside the
// registries themselves.
type BreakerHandler struct {
	logger *slog.Logger
	boxes  map[string]*registry.Registry
}

func NewBreakerHandler(logger *slog.Logger, boxes []*registry.Registry) *BreakerHandler {
	table := make(map[string]*registry.Registry, len(boxes))
	for _, b := range boxes {
		table[b.Box()] = b
	}

	return &BreakerHandler{
		logger: logger,
		boxes:  table,
	}
}

// Register wires the breaker routes onto mux.
func (h *BreakerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /boxes/{box}/breakers", h.listBreakers)
	mux.HandleFunc("POST /boxes/{box}/breakers", h.registerBreaker)
	mux.HandleFunc("GET /boxes/{box}/breakers/{name}", h.getConfig)
	mux.HandleFunc("DELETE /boxes/{box}/breakers/{name}", h.removeBreaker)
	mux.HandleFunc("GET /boxes/{box}/status", h.statusAll)
	mux.HandleFunc("GET /boxes/{box}/breakers/{name}/status", h.status)
	mux.HandleFunc("POST /boxes/{box}/breakers/{name}/failure", h.incrementError)
	mux.HandleFunc("POST /boxes/{box}/breakers/{name}/reset", h.reset)
	mux.HandleFunc("POST /boxes/{box}/breakers/{name}/disable", h.disable)
	mux.HandleFunc("POST /boxes/{box}/breakers/{name}/enable", h.enable)
}

type breakerPayload struct {
	Name          string `json:"name"`
	MaxFailures   int    `json:"max_failures"`
	FailureWindow string `json:"failure_window"`
	ResetWindow   string `json:"reset_window"`
}

type statusPayload struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

type errorPayload struct {
	Error string `json:"error"`
}

func configPayload(name string, cfg circuitbreaker.Config) breakerPayload {
	return breakerPayload{
		Name:          name,
		MaxFailures:   cfg.MaxFailures,
		FailureWindow: cfg.FailureWindow.String(),
		ResetWindow:   cfg.ResetWindow.String(),
	}
}

func (h *BreakerHandler) listBreakers(w http.ResponseWriter, r *http.Request) {
	box, ok := h.box(w, r)
	if !ok {
		return
	}

	registered := box.Registered()

	payload := make(map[string]breakerPayload, len(registered))
	for name, cfg := range registered {
		payload[name] = configPayload(name, cfg)
	}

	writeJSON(w, http.StatusOK, payload)
}

func (h *BreakerHandler) registerBreaker(w http.ResponseWriter, r *http.Request) {
	box, ok := h.box(w, r)
	if !ok {
		return
	}

	var body breakerPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "malformed request body"})
		return
	}

	cfg, err := resolveConfig(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: err.Error()})
		return
	}

	if err := box.Register(body.Name, cfg); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Registered breaker",
		slog.String("box", box.Box()),
		slog.String("breaker", body.Name),
		slog.Int("max_failures", cfg.MaxFailures))

	writeJSON(w, http.StatusCreated, configPayload(body.Name, cfg))
}

func resolveConfig(body breakerPayload) (circuitbreaker.Config, error) {
	failureWindow, err := time.ParseDuration(body.FailureWindow)
	if err != nil {
		return circuitbreaker.Config{}, errors.New("failure_window must be a valid duration")
	}

	resetWindow, err := time.ParseDuration(body.ResetWindow)
	if err != nil {
		return circuitbreaker.Config{}, errors.New("reset_window must be a valid duration")
	}

	return circuitbreaker.Config{
		MaxFailures:   body.MaxFailures,
		FailureWindow: failureWindow,
		ResetWindow:   resetWindow,
	}, nil
}

func (h *BreakerHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	box, ok := h.box(w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")

	cfg, err := box.GetConfig(name)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, configPayload(name, cfg))
}

func (h *BreakerHandler) removeBreaker(w http.ResponseWriter, r *http.Request) {
	box, ok := h.box(w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")

	if err := box.Remove(name); err != nil {
		h.writeError(w, err)
		return
	}

	h.logger.Info("Removed breaker",
		slog.String("box", box.Box()),
		slog.String("breaker", name))

	w.WriteHeader(http.StatusNoContent)
}

func (h *BreakerHandler) statusAll(w http.ResponseWriter, r *http.Request) {
	box, ok := h.box(w, r)
	if !ok {
		return
	}

	statuses := box.StatusAll()

	payload := make(map[string]statusPayload, len(statuses))
	for name, st := range statuses {
		payload[name] = statusPayload{Name: name, Status: st.Code.String()}
	}

	writeJSON(w, http.StatusOK, payload)
}

func (h *BreakerHandler) status(w http.ResponseWriter, r *http.Request) {
	box, ok := h.box(w, r)
	if !ok {
		return
	}

	st := box.Status(r.PathValue("name"))

	code := http.StatusOK
	if st.Code == registry.StatusNotFound {
		code = http.StatusNotFound
	}

	writeJSON(w, code, statusPayload{Name: st.Name, Status: st.Code.String()})
}

func (h *BreakerHandler) incrementError(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "failure", func(box *registry.Registry, name string) error {
		return box.IncrementError(name)
	})
}

func (h *BreakerHandler) reset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "reset", func(box *registry.Registry, name string) error {
		return box.Reset(name)
	})
}

func (h *BreakerHandler) disable(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "disable", func(box *registry.Registry, name string) error {
		return box.Disable(name)
	})
}

func (h *BreakerHandler) enable(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "enable", func(box *registry.Registry, name string) error {
		return box.Enable(name)
	})
}

func (h *BreakerHandler) mutate(w http.ResponseWriter, r *http.Request, action string, op func(*registry.Registry, string) error) {
	box, ok := h.box(w, r)
	if !ok {
		return
	}

	name := r.PathValue("name")

	if err := op(box, name); err != nil {
		h.writeError(w, err)
		return
	}

	if action != "failure" {
		h.logger.Info("Breaker operation",
			slog.String("box", box.Box()),
			slog.String("breaker", name),
			slog.String("action", action))
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *BreakerHandler) box(w http.ResponseWriter, r *http.Request) (*registry.Registry, bool) {
	name := r.PathValue("box")

	box, ok := h.boxes[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, errorPayload{Error: "unknown box: " + name})
		return nil, false
	}

	return box, true
}

func (h *BreakerHandler) writeError(w http.ResponseWriter, err error) {
	var nf *registry.NotFoundError

	switch {
	case errors.As(err, &nf), errors.Is(err, registry.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorPayload{Error: err.Error()})
	case errors.Is(err, circuitbreaker.ErrInvalidConfig), errors.Is(err, registry.ErrEmptyName):
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: err.Error()})
	case errors.Is(err, registry.ErrStopped):
		writeJSON(w, http.StatusServiceUnavailable, errorPayload{Error: err.Error()})
	default:
		h.logger.Error("Breaker operation failed", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorPayload{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are gone already; nothing useful left to do.
		return
	}
}
