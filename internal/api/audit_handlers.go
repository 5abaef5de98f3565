package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/technosupport/campus-presence/internal/audit"
	"github.com/technosupport/campus-presence/internal/middleware"
)

type AuditHandler struct {
	Service *audit.Service
}

func (h *AuditHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetAuthContext(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	filter := audit.AuditFilter{
		Result: q.Get("result"),
		Cursor: q.Get("cursor"),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = l
		}
	}
	if filter.Limit == 0 || filter.Limit > 100 {
		filter.Limit = 50
	}

	if fromStr := q.Get("from"); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.DateFrom = &t
		}
	}
	if toStr := q.Get("to"); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.DateTo = &t
		}
	}

	events, nextCursor, err := h.Service.QueryEvents(r.Context(), filter)
	if err != nil {
		http.Error(w, "Query Failed", http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"events": events,
		"cursor": nextCursor,
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *AuditHandler) ExportEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetAuthContext(r.Context()); !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	q := r.URL.Query()
	filter := audit.AuditFilter{Result: q.Get("result")}
	if fromStr := q.Get("from"); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.DateFrom = &t
		}
	}
	if toStr := q.Get("to"); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.DateTo = &t
		}
	}

	w.Header().Set("Content-Type", "application/x-jsonl")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit_export.jsonl\"")

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if err := h.Service.ExportEvents(r.Context(), filter, w); err != nil {
		// Headers are already flushed; nothing left to do but log it.
		fmt.Printf("Export stream error: %v\n", err)
	}
}
