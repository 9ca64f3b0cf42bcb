package api

import (
	"net/http"

	"github.com/liquidintel/taplist/pkg/httputil"
	"github.com/liquidintel/taplist/pkg/inventory"
)

func (s *Server) handleGetKegs(w http.ResponseWriter, r *http.Request) {
	kegs, err := s.opts.Inventory.GetKegs(r.Context(), nil)
	if err != nil {
		s.logger.WithError(err).Error("failed to list kegs")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, kegs)
}

func (s *Server) handleCreateKeg(w http.ResponseWriter, r *http.Request) {
	var keg inventory.Keg
	if !httputil.ParseJSONOrError(w, r, &keg) {
		return
	}

	created, err := s.opts.Inventory.CreateKeg(r.Context(), keg)
	if err != nil {
		s.logger.WithError(err).Error("failed to create keg")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, created)
}

func (s *Server) handleGetCurrentKeg(w http.ResponseWriter, r *http.Request) {
	var tapID *int64
	if httputil.ParsePathString(r, "tap_id") != "" {
		id, ok := httputil.ParsePathIntOrError(w, r, "tap_id")
		if !ok {
			return
		}
		tap := int64(id)
		tapID = &tap
	}

	kegs, err := s.opts.Inventory.ListCurrentKegs(r.Context(), tapID)
	if err != nil {
		s.logger.WithError(err).Error("failed to list current kegs")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, kegs)
}

func (s *Server) handleInstallKeg(w http.ResponseWriter, r *http.Request) {
	tapID, ok := httputil.ParsePathIntOrError(w, r, "tap_id")
	if !ok {
		return
	}

	var req inventory.InstallRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequirePositive(w, req.KegID, "KegId") {
		return
	}

	kegs, err := s.opts.Inventory.InstallKeg(r.Context(), int64(tapID), req)
	if err != nil {
		s.logger.WithError(err).Error("failed to install keg")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, kegs)
}

func (s *Server) handleFinishKeg(w http.ResponseWriter, r *http.Request) {
	tapID, ok := httputil.ParsePathIntOrError(w, r, "tap_id")
	if !ok {
		return
	}

	if err := s.opts.Inventory.FinishKeg(r.Context(), int64(tapID)); err != nil {
		s.logger.WithError(err).Error("failed to finish keg")
		httputil.WriteDomainError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "finished"})
}
