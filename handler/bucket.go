package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/p2pml/training-dispatcher/common/storage"
	"github.com/p2pml/training-dispatcher/common/utils"
)

// BucketHandler exposes read-only content store inspection endpoints.
type BucketHandler struct {
	store  storage.Lister
	signer storage.ContentStore
	router *chi.Mux
}

// NewBucketHandler creates the bucket inspection endpoints.
func NewBucketHandler(store storage.Lister, signer storage.ContentStore) *BucketHandler {
	h := &BucketHandler{
		store:  store,
		signer: signer,
	}

	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Get("/metadata", h.handleMetadata)
	r.Get("/presigned", h.handlePresigned)

	h.router = r
	return h
}

// Router returns the handler's sub-router.
func (h *BucketHandler) Router() *chi.Mux {
	return h.router
}

func (h *BucketHandler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	objects, err := h.store.List(ctx, r.URL.Query().Get("prefix"))
	if err != nil {
		utils.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(objects),
		"objects": objects,
	})
}

func (h *BucketHandler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing 'key' parameter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	info, err := h.store.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			utils.WriteError(w, http.StatusNotFound, "object not found")
			return
		}
		utils.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, info)
}

func (h *BucketHandler) handlePresigned(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		utils.WriteError(w, http.StatusBadRequest, "missing 'key' parameter")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	url, err := h.signer.Presign(ctx, key, time.Hour)
	if err != nil {
		utils.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"key":        key,
		"url":        url,
		"expires_in": int(time.Hour.Seconds()),
	})
}
