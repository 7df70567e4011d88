package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/isotopp/deploy/internal/deploy"
	"github.com/isotopp/deploy/internal/history"
	"github.com/isotopp/deploy/internal/security"
	"github.com/isotopp/deploy/internal/store"
)

const (
	MaxPayloadBytes = 1_000_000 // 1 MB

	// Number of recent deploys in the status endpoint.
	RecentStatusLimit = 10
)

// HandleHealth reports liveness.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleStatus reports the deploy history of one project.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	projectName := chi.URLParam(r, "projectName")

	if err := security.ValidateProjectName(projectName); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if _, err := s.Store.Load(projectName); err != nil {
		s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown project"})
		return
	}

	response := map[string]interface{}{"project": projectName}

	if s.History != nil {
		latest, err := s.History.Latest(r.Context(), projectName)
		if err != nil {
			s.Logger.Error("failed to query history", "project", projectName, "error", err)
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "History unavailable"})
			return
		}
		recent, err := s.History.Recent(r.Context(), projectName, RecentStatusLimit)
		if err != nil {
			s.Logger.Error("failed to query history", "project", projectName, "error", err)
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "History unavailable"})
			return
		}
		response["latest"] = latest
		response["recent"] = recent
	}

	s.respondJSON(w, http.StatusOK, response)
}

// HandleDeploy verifies the webhook signature and triggers the code
// pipeline for a project.
func (s *Server) HandleDeploy(w http.ResponseWriter, r *http.Request) {
	projectName := chi.URLParam(r, "projectName")

	if err := security.ValidateProjectName(projectName); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	if _, err := s.Store.Load(projectName); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.respondJSON(w, http.StatusNotFound, map[string]string{"error": "Unknown project"})
			return
		}
		s.Logger.Error("failed to load descriptor", "project", projectName, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to load project"})
		return
	}

	if r.ContentLength > MaxPayloadBytes {
		s.respondJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Payload too large"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxPayloadBytes))
	if err != nil {
		s.Logger.Error("failed to read request body", "project", projectName, "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to read payload"})
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if !VerifySignature(body, signature, s.Secret) {
		s.respondJSON(w, http.StatusForbidden, map[string]string{"error": "Invalid signature"})
		return
	}

	if !s.LockManager.TryLock(projectName) {
		s.Logger.Warn("deploy already in progress, rejecting", "project", projectName)

		if s.History != nil {
			msg := "deploy already in progress"
			if _, err := s.History.Append(r.Context(), &history.Record{
				Project:      projectName,
				Status:       history.StatusRejected,
				ErrorMessage: &msg,
			}); err != nil {
				s.Logger.Error("failed to record rejection", "project", projectName, "error", err)
			}
		}

		s.respondJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Deploy already in progress"})
		return
	}

	// Acknowledge before running: webhook senders time out quickly, the
	// pipeline may not.
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"message": "Deploy accepted",
		"project": projectName,
	})

	s.deployWg.Add(1)
	go func() {
		defer s.deployWg.Done()
		defer s.LockManager.Unlock(projectName)
		s.runDeploy(context.Background(), projectName)
	}()
}

// runDeploy executes the pipeline with buffered output.
func (s *Server) runDeploy(ctx context.Context, projectName string) {
	var out bytes.Buffer

	pipe := deploy.NewPipeline(s.Store, s.Runner, &out, s.Logger)
	pipe.History = s.History

	err := pipe.Deploy(ctx, projectName, s.DeployTimeout)
	if err != nil {
		s.Logger.Error("deploy failed", "project", projectName, "error", err)
		return
	}

	if s.ExposeOutput {
		s.Logger.Info("deploy finished", "project", projectName, "output", out.String())
	} else {
		s.Logger.Info("deploy finished", "project", projectName)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.Logger.Error("failed to encode response", "error", err)
	}
}
