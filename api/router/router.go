// Package router assembles the gateway's HTTP routes and middleware.
package router

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/flowgate-ai/flowgate/api/handlers"
	"github.com/flowgate-ai/flowgate/api/middleware"
	"github.com/flowgate-ai/flowgate/gateway"
	"github.com/flowgate-ai/flowgate/gateway/convo"
	"github.com/flowgate-ai/flowgate/gateway/stream"
	"github.com/flowgate-ai/flowgate/internal/metrics"
)

// Options configures the router.
type Options struct {
	Registry    *gateway.Registry
	Builder     *convo.Builder
	Dispatcher  *stream.Dispatcher
	Metrics     *metrics.Collector
	TokenBudget int
	AuthEnabled bool
	JWTSecret   string
	Logger      *zap.Logger
}

// New builds the full route tree: chat, image and video generation,
// provider discovery, and health, behind logging and auth middleware.
// Health stays outside auth so probes work without credentials.
func New(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	chat := handlers.NewChatHandler(opts.Registry, opts.Builder, opts.Dispatcher, opts.TokenBudget, logger)
	image := handlers.NewImageHandler(opts.Registry, logger)
	video := handlers.NewVideoHandler(opts.Registry, logger)
	providers := handlers.NewProvidersHandler(opts.Registry, logger)

	auth := middleware.NewAuth(opts.AuthEnabled, opts.JWTSecret, logger)
	logging := middleware.NewLogging(logger, opts.Metrics)
	tracing := middleware.NewTracing()

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/chat/completions", chat.HandleCompletion)
	protected.HandleFunc("POST /v1/chat/completions/stream", chat.HandleStream)
	protected.HandleFunc("POST /v1/images/generations", image.HandleGenerate)
	protected.HandleFunc("POST /v1/videos/generations", video.HandleGenerate)
	protected.HandleFunc("GET /v1/providers", providers.HandleList)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", providers.HandleHealth)
	root.Handle("/", auth.Wrap(protected))

	return logging.Wrap(tracing.Wrap(root))
}
