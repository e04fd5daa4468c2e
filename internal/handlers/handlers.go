package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/Naman6019/News-Agent/internal/feed"
	"github.com/Naman6019/News-Agent/internal/schedule"
	"github.com/Naman6019/News-Agent/internal/whatsapp"
)

// detailedHealthHandler reports per-component health
func (s *Server) detailedHealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	inferenceHealthy := s.ollama.Healthy(ctx) == nil
	modelPresent := false
	if inferenceHealthy {
		modelPresent, _ = s.ollama.HasModel(ctx, s.config.OllamaModel)
	}

	overall := "healthy"
	if !inferenceHealthy || !modelPresent {
		overall = "degraded"
	}

	response := map[string]interface{}{
		"status":  overall,
		"version": version,
		"components": map[string]interface{}{
			"inference": map[string]interface{}{
				"healthy":  inferenceHealthy,
				"base_url": s.config.OllamaBaseURL,
			},
			"model": map[string]interface{}{
				"present": modelPresent,
				"name":    s.config.OllamaModel,
			},
			"messaging": map[string]interface{}{
				"configured": s.messenger.Enabled(),
			},
			"scheduler": s.scheduler.Status(),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// livenessHandler always answers while the process is up
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{
		"status": "alive",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// readinessHandler answers ready only when the inference server does
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := s.ollama.Healthy(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status": "ready",
	})
}

// digestPreviewHandler builds a digest for ?slot= without delivering it
func (s *Server) digestPreviewHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	slotParam := r.URL.Query().Get("slot")
	if slotParam == "" {
		slotParam = string(schedule.SlotMorning)
	}

	slot, err := schedule.ParseSlot(slotParam)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid slot: %v", err), http.StatusBadRequest)
		return
	}

	report := s.digest.Preview(ctx, slot)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

// categoriesHandler lists configured categories with feed counts
func (s *Server) categoriesHandler(w http.ResponseWriter, r *http.Request) {
	feeds := s.aggregator.Feeds()

	categories := make([]map[string]interface{}, 0, len(feeds))
	for _, category := range feed.Categories() {
		categories = append(categories, map[string]interface{}{
			"name":  string(category),
			"title": category.Title(),
			"feeds": len(feeds[category]),
		})
	}

	response := map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// sourcesHandler returns the full category to feed URL map
func (s *Server) sourcesHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"sources": s.aggregator.Feeds(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// newsTestHandler runs the pipeline self-test
func (s *Server) newsTestHandler(w http.ResponseWriter, r *http.Request) {
	result := s.digest.SelfTest(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// schedulerStatusHandler reports scheduler state and the last cycle report
func (s *Server) schedulerStatusHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"scheduler":   s.scheduler.Status(),
		"last_report": s.digest.LastReport(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// nextRunsHandler reports the next morning and evening delivery instants
func (s *Server) nextRunsHandler(w http.ResponseWriter, r *http.Request) {
	status := s.scheduler.Status()

	response := map[string]interface{}{
		"next_runs": status.NextRuns,
		"timezone":  status.Timezone,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// triggerHandler starts a digest cycle for the slot in the URL
func (s *Server) triggerHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	slot, err := schedule.ParseSlot(vars["slot"])
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid slot: %v", err), http.StatusBadRequest)
		return
	}

	if err := s.scheduler.Trigger(slot); err != nil {
		if errors.Is(err, schedule.ErrCycleInFlight) {
			http.Error(w, "A digest cycle is already in progress", http.StatusConflict)
			return
		}
		http.Error(w, fmt.Sprintf("Error triggering delivery: %v", err), http.StatusInternalServerError)
		return
	}

	response := map[string]string{
		"status":  "accepted",
		"message": fmt.Sprintf("%s digest triggered", slot),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(response)
}

// whatsappTestHandler sends the WhatsApp integration test message
func (s *Server) whatsappTestHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.messenger.SendTestMessage(r.Context()); err != nil {
		if errors.Is(err, whatsapp.ErrNotConfigured) {
			http.Error(w, "WhatsApp messaging not configured", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, fmt.Sprintf("Error sending test message: %v", err), http.StatusInternalServerError)
		return
	}

	response := map[string]string{
		"status":  "success",
		"message": "Test message sent",
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// sendCustomHandler sends an arbitrary message body to the recipient
func (s *Server) sendCustomHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	if err := s.messenger.Send(r.Context(), req.Message); err != nil {
		if errors.Is(err, whatsapp.ErrNotConfigured) {
			http.Error(w, "WhatsApp messaging not configured", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, fmt.Sprintf("Error sending message: %v", err), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"status":  "success",
		"message": "Message sent",
		"sent_at": time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// validateNumbersHandler reports phone number format validation results
func (s *Server) validateNumbersHandler(w http.ResponseWriter, r *http.Request) {
	validation := s.messenger.ValidateNumbers()

	response := map[string]interface{}{
		"configured": s.messenger.Enabled(),
		"validation": validation,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
