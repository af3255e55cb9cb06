// internal/server/handlers.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/monofi/monofid/internal/advisor"
	"github.com/monofi/monofid/internal/allocation"
	"github.com/monofi/monofid/internal/export"
)

const defaultWhaleLimit = 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	current := s.portfolio.Current()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": current,
		"total":       current.Total(),
		"in_flight":   s.portfolio.InFlight(),
	})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	draft := s.portfolio.Draft()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": draft,
		"total":       draft.Total(),
		"has_changes": allocation.HasChanges(draft, s.portfolio.Current()),
	})
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var set allocation.Set
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(set) == 0 {
		s.writeError(w, http.StatusBadRequest, "Draft must contain at least one allocation")
		return
	}
	for _, entry := range set {
		if entry.Percentage < 0 || entry.Percentage > 100 {
			s.writeError(w, http.StatusBadRequest, "Percentages must be between 0 and 100")
			return
		}
	}
	s.portfolio.SetDraft(set)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": set,
		"total":       set.Total(),
	})
}

func (s *Server) handleResetDraft(w http.ResponseWriter, r *http.Request) {
	s.portfolio.ResetDraft()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handlePatchDraftEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Percentage int `json:"percentage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.portfolio.UpdateDraftEntry(id, req.Percentage); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	draft := s.portfolio.Draft()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": draft,
		"total":       draft.Total(),
	})
}

func (s *Server) handleAutoBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locked []string `json:"locked"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	locked := make(map[string]bool, len(req.Locked))
	for _, id := range req.Locked {
		locked[id] = true
	}

	balanced := s.portfolio.AutoBalance(locked)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": balanced,
		"total":       balanced.Total(),
	})
}

func (s *Server) handleApplySuggestion(w http.ResponseWriter, r *http.Request) {
	var action advisor.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	draft, err := s.portfolio.ApplySuggestion(&action)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"allocations": draft,
		"total":       draft.Total(),
	})
}

// handleSubmit maps the submission outcome onto HTTP. A declined signature
// and a no-change submit are not failures: the signer changing their mind is
// informational and an unchanged portfolio is already in the desired state.
// Only a real chain write failure surfaces as an error payload.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	record, err := s.portfolio.Submit(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, allocation.ErrAlreadyInProgress):
			s.writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, allocation.ErrInvalidTotal):
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, allocation.ErrNoChanges):
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "no_changes",
			})
		case errors.Is(err, allocation.ErrUserCancelled):
			s.logger.Info("Submission cancelled by signer")
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"status": "cancelled",
				"record": record,
			})
		default:
			s.logger.Error("Submission failed", zap.Error(err))
			s.writeJSON(w, http.StatusBadGateway, map[string]interface{}{
				"error":  err.Error(),
				"record": record,
			})
		}
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": s.portfolio.History(),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Format        string `json:"format"`
		Status        string `json:"status"`
		OnlyConfirmed bool   `json:"only_confirmed"`
		OutputDir     string `json:"output_dir"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	format := export.FormatCSV
	if strings.EqualFold(req.Format, "json") {
		format = export.FormatJSON
	}

	path, err := s.exporter.ExportSubmissions(s.portfolio.History(), export.ExportOptions{
		Format:        format,
		StatusFilter:  allocation.SubmissionStatus(req.Status),
		OnlyConfirmed: req.OnlyConfirmed,
		OutputDir:     req.OutputDir,
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *Server) handleWhalesRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultWhaleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"sightings": s.whales.Recent(limit),
	})
}

func (s *Server) handleWhalesSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.whales.Summary())
}

func (s *Server) handleWhaleAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil || !s.advisor.Available() {
		s.writeError(w, http.StatusServiceUnavailable, "AI advisor is not configured")
		return
	}

	var req advisor.WhaleContext
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	analysis, err := s.advisor.WhaleAnalysis(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"prices": s.prices.Snapshot(),
	})
}

func (s *Server) handlePriceBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	price, ok := s.prices.Current(symbol)
	if !ok {
		s.writeError(w, http.StatusNotFound, "No price for symbol "+symbol)
		return
	}
	s.writeJSON(w, http.StatusOK, price)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil || !s.advisor.Available() {
		s.writeError(w, http.StatusServiceUnavailable, "AI advisor is not configured")
		return
	}

	var req struct {
		Message string                `json:"message"`
		History []advisor.ChatMessage `json:"history"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		s.writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	reply, err := s.advisor.Chat(r.Context(), req.Message, req.History)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil || !s.advisor.Available() {
		s.writeError(w, http.StatusServiceUnavailable, "AI advisor is not configured")
		return
	}

	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Symbol) == "" {
		s.writeError(w, http.StatusBadRequest, "Symbol is required")
		return
	}

	priceContext := ""
	if price, ok := s.prices.Current(req.Symbol); ok {
		ctx, err := json.Marshal(price)
		if err == nil {
			priceContext = string(ctx)
		}
	}

	insights, err := s.advisor.TokenInsights(r.Context(), req.Symbol, priceContext)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"insights": insights})
}

func (s *Server) handleNetworkStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := s.explorer.NetworkStats(ctx)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		s.writeError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	txs, err := s.explorer.AccountTransactions(r.Context(), address, limit)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
