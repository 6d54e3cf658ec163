package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"text2phenotype.com/ner/logger"
)

var apiLogger = logger.NewLogger("NER API")

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// WithRequestLogger puts a logger carrying the method and url of the request into the request context and logs
// the status and duration once handler returns. Handlers get it back with zerolog.Ctx.
func WithRequestLogger(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestLogger := apiLogger.With().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Logger()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		started := time.Now()

		handler(rec, r.WithContext(requestLogger.WithContext(r.Context())))

		event := requestLogger.Info()
		if rec.status >= http.StatusInternalServerError {
			event = requestLogger.Error()
		} else if rec.status >= http.StatusBadRequest {
			event = requestLogger.Warn()
		}
		event.Int("status", rec.status).Dur("elapsed", time.Since(started)).Msg("Handled request")
	}
}

func requestLogger(r *http.Request) *zerolog.Logger {
	return zerolog.Ctx(r.Context())
}
