package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strings"

	"mochi/pkg/imagegen"
	"mochi/pkg/metrics"
	"mochi/pkg/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Predictor classifies a partial observation. *pipeline.Pipeline satisfies it.
type Predictor interface {
	PredictQuery(q pipeline.Query) (string, error)
}

// ImageSource turns a prompt into an image URL. *imagegen.Client satisfies it.
type ImageSource interface {
	GenerateOrFallback(ctx context.Context, prompt string) string
}

// Defaults used when a GET /predict omits parameters.
const (
	DefaultTime = 8.5
	DefaultDay  = "mon"
)

// Handlers serves the prediction API.
type Handlers struct {
	Log       *slog.Logger
	Predictor Predictor
	Images    ImageSource
	Metrics   *metrics.Metrics
	Classes   []string // shown on the index page
}

// PredictResponse is the body of a successful prediction.
type PredictResponse struct {
	Status      string `json:"status"`
	Activity    string `json:"activity"`
	Description string `json:"description"`
	ImageURL    string `json:"image_url"`
	Prompt      string `json:"prompt"`
	Time        string `json:"time"`
	Day         string `json:"day"`
}

type predictRequest struct {
	Time string `json:"time"`
	Day  string `json:"day"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// errBadRequest marks input errors that map to 400.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Index renders the single-page UI.
func (h *Handlers) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ Classes []string }{h.Classes}); err != nil {
		h.Log.Error("render index", "error", err)
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// PredictGet handles GET /predict?time=8.5&day=mon.
func (h *Handlers) PredictGet(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	hours := DefaultTime
	if v := qs.Get("time"); v != "" {
		t, err := parseAnyTime(v)
		if err != nil {
			h.fail(w, badRequest("%v", err))
			return
		}
		hours = t
	}
	day := qs.Get("day")
	if day == "" {
		day = DefaultDay
	}
	h.predict(w, r, hours, day)
}

// PredictPost handles POST /predict with {"time":"HH:MM","day":"mon"}.
func (h *Handlers) PredictPost(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	if err := dec.Decode(&req); err != nil {
		h.fail(w, badRequest("invalid JSON body: %v", err))
		return
	}
	if req.Time == "" || req.Day == "" {
		h.fail(w, badRequest("time and day are required"))
		return
	}
	hours, err := parseAnyTime(req.Time)
	if err != nil {
		h.fail(w, badRequest("%v", err))
		return
	}
	h.predict(w, r, hours, req.Day)
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request, hours float64, rawDay string) {
	day, err := pipeline.ParseDay(rawDay)
	if err != nil {
		h.fail(w, badRequest("%v", err))
		return
	}
	activity, err := h.Predictor.PredictQuery(pipeline.NewQuery(hours, day))
	if err != nil {
		h.fail(w, fmt.Errorf("predict: %w", err))
		return
	}
	h.Metrics.Prediction(activity)

	details := imagegen.Describe(activity)
	resp := PredictResponse{
		Status:      "success",
		Activity:    activity,
		Description: details.Description,
		ImageURL:    h.Images.GenerateOrFallback(r.Context(), details.Prompt),
		Prompt:      details.Prompt,
		Time:        formatClock(hours),
		Day:         rawDay,
	}
	h.Log.Debug("prediction", "time", resp.Time, "day", day, "activity", activity)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
	} else {
		h.Log.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Status: "error", Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseAnyTime accepts "HH:MM" or decimal hours.
func parseAnyTime(s string) (float64, error) {
	if strings.Contains(s, ":") {
		return pipeline.ParseClock(s)
	}
	return pipeline.ParseHours(s)
}

// formatClock renders fractional hours as "HH:MM".
func formatClock(hours float64) string {
	total := int(math.Round(hours*60)) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
