package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/utafrali/lagosbazaar/pkg/errors"
	"github.com/utafrali/lagosbazaar/pkg/httputil"
	"github.com/utafrali/lagosbazaar/pkg/logger"
	"github.com/utafrali/lagosbazaar/pkg/middleware"
	"github.com/utafrali/lagosbazaar/services/storefront/internal/session"
)

type contextKey string

const sessionIDKey contextKey = "session_id"

// SessionFromHeader reads X-Session-ID and stores it in the request context.
// A missing or malformed id is replaced by a fresh UUID. The id in use is
// always echoed in the response header so clients can keep it.
func SessionFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sid := r.Header.Get(middleware.HeaderSessionID)
		if _, err := uuid.Parse(sid); err != nil {
			sid = uuid.NewString()
			ctx = logger.WithSessionID(ctx, sid)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With(slog.String("session_id", sid)))
		}

		w.Header().Set(middleware.HeaderSessionID, sid)
		ctx = context.WithValue(ctx, sessionIDKey, sid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionIDFromContext returns the id set by SessionFromHeader.
func sessionIDFromContext(ctx context.Context) string {
	sid, _ := ctx.Value(sessionIDKey).(string)
	return sid
}

// AdmitSession registers the request's session before a stateful handler
// runs. New sessions are refused with 503 while the registry is full.
func (h *StorefrontHandler) AdmitSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := h.sessions.Admit(r.Context(), sessionIDFromContext(r.Context())); err != nil {
			if errors.Is(err, session.ErrCapacity) {
				err = apperrors.ServiceUnavailable("too many active sessions, try again later")
			}
			httputil.WriteError(w, r, err, h.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ContentTypeJSON rejects request bodies that are not application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
