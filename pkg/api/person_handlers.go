package api

import (
	"net/http"

	"github.com/liquidintel/taplist/pkg/auth"
	"github.com/liquidintel/taplist/pkg/httputil"
	"github.com/liquidintel/taplist/pkg/identity"
)

func (s *Server) handleIsPersonValid(w http.ResponseWriter, r *http.Request) {
	cardID, ok := httputil.ParsePathIntOrError(w, r, "card_id")
	if !ok {
		return
	}

	person, err := s.opts.Identity.ResolvePersonByCardID(r.Context(), int64(cardID))
	if err != nil {
		s.logger.WithError(err).Error("failed to resolve person by card id")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, person)
}

// userScope returns the principal name a user request operates on: the
// user_id path segment when present, otherwise the authenticated token's UPN.
func userScope(r *http.Request) string {
	if upn := httputil.ParsePathString(r, "user_id"); upn != "" {
		return upn
	}
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		return principal.UPN
	}
	return ""
}

func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	scope := userScope(r)
	users, err := s.opts.Identity.GetUserDetails(r.Context(), scope)
	if err != nil {
		s.logger.WithError(err).Error("failed to load user details")
		httputil.WriteDomainError(w, err)
		return
	}

	// The scoped form answers with the single record, matching the kiosk
	// clients; the unscoped-all form stays a list.
	if scope != "" && len(users) == 1 {
		httputil.WriteSuccess(w, users[0])
		return
	}
	httputil.WriteSuccess(w, users)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	upn := userScope(r)
	if !httputil.RequireNonEmpty(w, upn, "user_id") {
		return
	}

	var update identity.UserUpdate
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}
	if !httputil.RequirePositive(w, update.PersonnelNumber, "PersonnelNumber") {
		return
	}

	users, err := s.opts.Identity.UpsertUserDetails(r.Context(), upn, update)
	if err != nil {
		s.logger.WithError(err).Error("failed to update user")
		httputil.WriteDomainError(w, err)
		return
	}
	if len(users) == 1 {
		httputil.WriteSuccess(w, users[0])
		return
	}
	httputil.WriteSuccess(w, users)
}
