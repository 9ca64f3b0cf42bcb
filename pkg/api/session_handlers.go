package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/liquidintel/taplist/pkg/activity"
	"github.com/liquidintel/taplist/pkg/httputil"
)

// filterableParams is the full set of query parameters the activity listing
// accepts. Anything else in the query string is rejected, never translated
// into SQL.
var filterableParams = map[string]bool{
	"personnel_number": true,
	"tap_id":           true,
	"since":            true,
	"until":            true,
	"count":            true,
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	filter, err := parseActivityFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	records, err := s.opts.Activity.ListActivity(r.Context(), *filter)
	if err != nil {
		s.logger.WithError(err).Error("failed to list activity")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, records)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var session activity.NewSession
	if !httputil.ParseJSONOrError(w, r, &session) {
		return
	}
	if !httputil.RequirePositive(w, session.TapID, "TapId") {
		return
	}
	if !httputil.RequirePositive(w, session.KegID, "KegId") {
		return
	}
	if !httputil.RequirePositive(w, session.PersonnelNumber, "PersonnelNumber") {
		return
	}

	record, err := s.opts.Activity.CreateSession(r.Context(), session)
	if err != nil {
		s.logger.WithError(err).Error("failed to record session")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteCreated(w, record)
}

func parseActivityFilter(r *http.Request) (*activity.Filter, error) {
	for param := range r.URL.Query() {
		if !filterableParams[param] {
			return nil, fmt.Errorf("unsupported filter parameter: %s", param)
		}
	}

	var filter activity.Filter

	if raw := httputil.ParsePathString(r, "session_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid session id: %s", raw)
		}
		filter.SessionID = &id
	}

	if raw := r.URL.Query().Get("personnel_number"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid personnel_number: %s", raw)
		}
		filter.PersonnelNumber = &id
	}

	if raw := r.URL.Query().Get("tap_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tap_id: %s", raw)
		}
		filter.TapID = &id
	}

	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid since timestamp: %s", raw)
		}
		filter.Since = &ts
	}

	if raw := r.URL.Query().Get("until"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid until timestamp: %s", raw)
		}
		filter.Until = &ts
	}

	if raw := r.URL.Query().Get("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count <= 0 {
			return nil, fmt.Errorf("invalid count: %s", raw)
		}
		filter.Limit = count
	}

	return &filter, nil
}
