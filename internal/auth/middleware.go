package auth

import (
	"net/http"
	"time"

	"github.com/gdg-garage/garage-workshops/internal/access"
	"github.com/gdg-garage/garage-workshops/internal/apperr"
	"go.uber.org/zap"
)

// AuthMiddleware resolves the session cookie into an access.Viewer on the
// request context. Requests without a usable session continue anonymously;
// the gates further down decide what an anonymous viewer may do.
func (h *AuthHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		accountID, exp, err := h.ParseToken(cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := h.accounts.CurrentUser(r.Context(), accountID)
		if err != nil {
			if !apperr.Is(err, apperr.KindUnauthorized) {
				h.log.Warn("session lookup failed", zap.String("account_id", accountID), zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		// Sliding session: refresh the token once it is past half its life
		if time.Until(exp) < TokenDuration/2 {
			if fresh, err := h.SessionCookie(accountID); err == nil {
				http.SetCookie(w, &fresh)
			}
		}

		ctx := access.WithViewer(r.Context(), access.As(user))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
