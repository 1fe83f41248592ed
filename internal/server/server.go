package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/SurinSeong/seasonal-ai-backend/internal/api"
	"github.com/SurinSeong/seasonal-ai-backend/internal/assistant"
	"github.com/SurinSeong/seasonal-ai-backend/internal/data"
	"github.com/SurinSeong/seasonal-ai-backend/internal/metrics"
	"github.com/SurinSeong/seasonal-ai-backend/internal/openai"
	"github.com/SurinSeong/seasonal-ai-backend/internal/render"
	"github.com/SurinSeong/seasonal-ai-backend/internal/util"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

const requestIDHeader = "X-Request-Id"

type completer interface {
	Complete(ctx context.Context, userMessage string) (string, error)
}

type asker interface {
	Ask(ctx context.Context, userMessage string) (string, error)
}

type ctx struct {
	config    *config
	chat      completer
	assistant asker
	metrics   metrics.Metrics
}

func newCtx(config *config) *ctx {
	util.Assert(config != nil, "newCtx nil config")

	m := metrics.NewMetrics()
	client := openai.NewClient(config.openaiConfig(), m)

	return &ctx{
		config:    config,
		chat:      client,
		assistant: assistant.New(client, config.AssistantID, config.pollInterval()),
		metrics:   m,
	}
}

type requestIDKey struct{}

func requestLogger(r *http.Request) *log.Entry {
	id, _ := r.Context().Value(requestIDKey{}).(string)
	return log.WithFields(log.Fields{"request_id": id, "path": r.URL.Path})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// instrument tags the request with an id and records its outcome under name.
func instrument(ctx *ctx, name string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(start)
		ctx.metrics.ObserveRequest(name, strconv.Itoa(rec.status), elapsed.Seconds())
		requestLogger(r).WithFields(log.Fields{
			"method":  r.Method,
			"status":  rec.status,
			"elapsed": elapsed.String(),
		}).Info("served request")
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// forward relays the message of a chat request to fn and writes its reply.
func forward(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (string, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request api.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Failed to decode request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	logger := requestLogger(r)

	reply, err := fn(r.Context(), request.Message)
	if err != nil {
		logger.WithError(err).Error("upstream call failed")
		http.Error(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	response := api.ChatResponse{Reply: reply}
	if r.URL.Query().Get("format") == api.FormatHTML {
		html, err := render.HTML(reply)
		if err != nil {
			logger.WithError(err).Error("failed to render reply")
			http.Error(w, "Failed to render reply", http.StatusInternalServerError)
			return
		}
		response.ReplyHTML = html
	}

	writeJSON(w, response)
}

func chatHandler(ctx *ctx, w http.ResponseWriter, r *http.Request) {
	util.Assert(ctx.chat != nil, "chatHandler nil completer")
	forward(w, r, ctx.chat.Complete)
}

func assistantHandler(ctx *ctx, w http.ResponseWriter, r *http.Request) {
	util.Assert(ctx.assistant != nil, "assistantHandler nil assistant")
	forward(w, r, ctx.assistant.Ask)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data.IndexHTML)
}

func handlerWith[T interface{}](t T, fn func(T, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(t, w, r)
	}
}

func corsOf(config *config) *cors.Cors {
	options := cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{requestIDHeader},
		AllowCredentials: true,
	}
	for _, origin := range config.AllowedOrigins {
		// browsers reject a literal "*" together with credentials
		if origin == "*" {
			options.AllowedOrigins = nil
			options.AllowOriginFunc = func(string) bool { return true }
			break
		}
	}
	if log.IsLevelEnabled(log.DebugLevel) {
		options.Logger = log.StandardLogger()
	}
	return cors.New(options)
}

func newHandler(ctx *ctx) http.Handler {
	util.Assert(ctx != nil, "newHandler nil ctx")

	mux := http.NewServeMux()
	mux.HandleFunc("/", instrument(ctx, "index", indexHandler))
	mux.HandleFunc(api.ChatPath, instrument(ctx, "chat", handlerWith(ctx, chatHandler)))
	mux.HandleFunc(api.AssistantPath, instrument(ctx, "assistant", handlerWith(ctx, assistantHandler)))
	mux.HandleFunc(api.HealthPath, healthHandler)
	mux.Handle(api.MetricsPath, promhttp.HandlerFor(ctx.metrics.GetRegistry(), promhttp.HandlerOpts{}))

	return corsOf(ctx.config).Handler(mux)
}

// Main serves until the listener fails. configPath may be empty.
func Main(configPath string) {
	config, err := loadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, _ := log.ParseLevel(config.LogLevel)
	log.SetLevel(level)

	ctx := newCtx(config)

	log.Printf("Server starting on %s...", config.addr())
	log.Fatal(http.ListenAndServe(config.addr(), newHandler(ctx)))
}
