package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/nightshade-os/wifi-keystore/internal/api/errors"
	"github.com/nightshade-os/wifi-keystore/pkg/keystore"
)

// EntriesHandler exposes a key store backend over HTTP. It is the service
// side of keystore.RemoteStore and shares its wire types.
type EntriesHandler struct {
	store keystore.KeyStore
}

// NewEntriesHandler creates a handler over the given backend.
func NewEntriesHandler(store keystore.KeyStore) *EntriesHandler {
	return &EntriesHandler{store: store}
}

// SetKey handles PUT /api/v1/entries/{alias}/key.
func (h *EntriesHandler) SetKey(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if alias == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("alias is required"))
		return
	}

	var req keystore.KeyEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("invalid request body"))
		return
	}

	key, chain, err := req.Decode()
	if err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest(err.Error()))
		return
	}

	if err := h.store.SetKeyEntry(r.Context(), alias, key, chain); err != nil {
		status, apiErr := apierrors.MapError(err)
		respondError(w, status, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetCertificate handles PUT /api/v1/entries/{alias}/certificate.
func (h *EntriesHandler) SetCertificate(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if alias == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("alias is required"))
		return
	}

	var req keystore.CertificateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("invalid request body"))
		return
	}

	cert, err := req.Decode()
	if err != nil {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest(err.Error()))
		return
	}

	if err := h.store.SetCertificateEntry(r.Context(), alias, cert); err != nil {
		status, apiErr := apierrors.MapError(err)
		respondError(w, status, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /api/v1/entries/{alias}.
// Deleting an absent alias succeeds, matching the store contract.
func (h *EntriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if alias == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("alias is required"))
		return
	}

	if err := h.store.DeleteEntry(r.Context(), alias); err != nil {
		status, apiErr := apierrors.MapError(err)
		respondError(w, status, apiErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetCertificate handles GET /api/v1/entries/{alias}/certificate.
func (h *EntriesHandler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if alias == "" {
		respondError(w, http.StatusBadRequest, apierrors.NewBadRequest("alias is required"))
		return
	}

	cert, err := h.store.GetCertificate(r.Context(), alias)
	if err != nil {
		status, apiErr := apierrors.MapError(err)
		respondError(w, status, apiErr)
		return
	}

	respondJSON(w, http.StatusOK, keystore.NewCertificateResponse(cert))
}
