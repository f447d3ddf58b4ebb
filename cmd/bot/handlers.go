package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/aurashield/mentions-bot/internal/models"
	"github.com/aurashield/mentions-bot/internal/poller"
	"github.com/aurashield/mentions-bot/internal/store"
)

type apiServer struct {
	poller *poller.Service
	store  *store.Store
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// metricsHandler exposes the last cycle report.
func (a *apiServer) metricsHandler(w http.ResponseWriter, r *http.Request) {
	report := a.poller.LastReport()
	if report == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no cycles completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// pollHandler runs one cycle synchronously and returns its report.
// A cycle already in flight is a conflict, not an error.
func (a *apiServer) pollHandler(w http.ResponseWriter, r *http.Request) {
	report, err := a.poller.RunCycle(r.Context())
	if errors.Is(err, poller.ErrCycleInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		logrus.Errorf("Manual polling trigger failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *apiServer) listMentionsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := store.Filter{
		Subject: q.Get("subject"),
		Source:  models.Source(q.Get("source")),
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be RFC3339"})
			return
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "until must be RFC3339"})
			return
		}
		filter.Until = t
	}
	if v := q.Get("crisis_only"); v != "" {
		filter.CrisisOnly, _ = strconv.ParseBool(v)
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}

	mentions, err := a.store.QueryMentions(r.Context(), filter)
	if err != nil {
		logrus.Errorf("Mention query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"mentions": mentions,
		"count":    len(mentions),
	})
}

func (a *apiServer) trackSubjectHandler(w http.ResponseWriter, r *http.Request) {
	var subject models.Subject
	if err := json.NewDecoder(r.Body).Decode(&subject); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if subject.UserID == "" || subject.Type == "" || subject.Value == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id, type and value are required"})
		return
	}

	err := a.store.TrackSubject(r.Context(), &subject)
	if errors.Is(err, store.ErrAlreadyTracked) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		logrus.Errorf("Tracking subject failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to track subject"})
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (a *apiServer) untrackSubjectHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	err := a.store.UntrackSubject(r.Context(), userID, id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		logrus.Errorf("Untracking subject failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to untrack subject"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}
