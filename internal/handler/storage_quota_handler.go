package handler

import (
	"net/http"

	"willcloud/internal/service"
)

type StorageQuotaHandler struct {
	sessions     sessionLookup
	quotaService *service.StorageQuotaService
}

func NewStorageQuotaHandler(sessions *service.Sessions, quotaService *service.StorageQuotaService) *StorageQuotaHandler {
	return &StorageQuotaHandler{
		sessions:     tokenSessions{sessions: sessions},
		quotaService: quotaService,
	}
}

func (h *StorageQuotaHandler) GetQuotaInfo(w http.ResponseWriter, r *http.Request) {
	d, ok := dashboardFor(h.sessions, w, r)
	if !ok {
		return
	}

	quotaInfo, err := h.quotaService.GetQuotaInfo(r.Context(), d.Session().UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, quotaInfo)
}
