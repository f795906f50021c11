package api

import (
	"log/slog"
	"net/http"
)

// CreateEntry handles POST /entries.
func (a *API) CreateEntry(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	req, ok := decodeJSON[CreateEntryRequest](w, r, maxEntryBodySize)
	if !ok {
		return
	}
	info, err := a.vault.CreateEntry(r.Context(), sess.Token, req)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logSession(AuditEntryCreated, r, sess.ID, slog.String("entry_id", info.ID))
	writeJSON(w, http.StatusCreated, info)
}

// ListEntries handles GET /entries.
func (a *API) ListEntries(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	entries, err := a.vault.ListEntries(r.Context(), sess.Token)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logSession(AuditEntriesListed, r, sess.ID, slog.Int("count", len(entries)))
	writeJSON(w, http.StatusOK, ListEntriesResponse{Entries: entries})
}

// DeleteEntries handles DELETE /entries.
func (a *API) DeleteEntries(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	n, err := a.vault.DeleteAllEntries(r.Context(), sess.Token)
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logSession(AuditEntriesDeleted, r, sess.ID, slog.Int("count", n))
	writeJSON(w, http.StatusOK, DeleteEntriesResponse{Deleted: n})
}
