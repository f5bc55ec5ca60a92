package handlers

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"printbroker/db"
	"printbroker/internal/apperr"
	"printbroker/internal/files"
	"printbroker/internal/metrics"
	"printbroker/internal/notify"
	"printbroker/internal/portaltoken"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	portalTTLDays  = 14
	maxUploadFiles = 10
	maxFileSize    = 50 << 20 // 50MB per file
)

// IssuePortalHandler handles POST /api/jobs/{id}/portal — staff action that
// mints (or rotates) the share link for a job. One active portal per job:
// reissuing replaces the token and expiry on the existing record.
func (h *Handler) IssuePortalHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var input struct {
		PurchaseOrderID *string `json:"purchaseOrderId"`
		TTLDays         int     `json:"ttlDays"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &input); err != nil {
			writeError(w, apperr.Validation("invalid JSON format"))
			return
		}
	}
	if input.TTLDays <= 0 {
		input.TTLDays = portalTTLDays
	}

	job, err := h.Store.GetJob(r.Context(), jobID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("job not found"))
			return
		}
		writeError(w, err)
		return
	}
	if input.PurchaseOrderID != nil {
		po, err := h.Store.GetPurchaseOrder(r.Context(), *input.PurchaseOrderID)
		if err != nil || po.JobID != job.ID {
			writeError(w, apperr.Validation("purchaseOrderId does not belong to this job"))
			return
		}
	}

	token, err := portaltoken.New()
	if err != nil {
		writeError(w, err)
		return
	}
	portal := &db.JobPortal{
		ID:              uuid.New().String(),
		JobID:           job.ID,
		ShareToken:      token,
		PurchaseOrderID: input.PurchaseOrderID,
		ExpiresAt:       time.Now().AddDate(0, 0, input.TTLDays),
	}
	if err := h.Store.UpsertPortal(r.Context(), portal); err != nil {
		writeError(w, err)
		return
	}

	// The token is returned once here; portal payloads never echo it.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"portal":    portal,
		"token":     token,
		"portalUrl": "/portal/" + token,
	})
}

// resolvePortal is the single gate every portal endpoint goes through: 404
// for a token that never existed, 410 for an expired one, and an access
// audit bump on success — reads included.
func (h *Handler) resolvePortal(r *http.Request) (*db.JobPortal, error) {
	token := chi.URLParam(r, "token")
	if token == "" {
		metrics.PortalResolves.WithLabelValues("not_found").Inc()
		return nil, apperr.NotFound("portal not found")
	}

	portal, err := h.Store.GetPortalByToken(r.Context(), token)
	if err != nil {
		if db.IsNotFound(err) {
			metrics.PortalResolves.WithLabelValues("not_found").Inc()
			return nil, apperr.NotFound("portal not found")
		}
		return nil, err
	}
	// Expiry is re-checked against the wall clock on every access; there
	// is no background sweep and no revoke.
	if portal.ExpiresAt.Before(time.Now()) {
		metrics.PortalResolves.WithLabelValues("expired").Inc()
		return nil, apperr.Expired("portal link has expired")
	}

	if err := h.Store.TouchPortalAccess(r.Context(), portal.ID); err != nil {
		log.Printf("portal access audit for %s: %v", portal.ID, err)
	}
	metrics.PortalResolves.WithLabelValues("ok").Inc()
	return portal, nil
}

// GetPortalHandler handles GET /api/portal/{token} — the public vendor view.
func (h *Handler) GetPortalHandler(w http.ResponseWriter, r *http.Request) {
	portal, err := h.resolvePortal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := h.Store.GetJob(r.Context(), portal.JobID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Scope to a single PO when the portal was issued for one.
	var pos []db.PurchaseOrder
	if portal.PurchaseOrderID != nil {
		po, err := h.Store.GetPurchaseOrder(r.Context(), *portal.PurchaseOrderID)
		if err == nil {
			pos = []db.PurchaseOrder{*po}
		}
	} else {
		pos, err = h.Store.GetPurchaseOrdersForJob(r.Context(), portal.JobID)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	jobFiles, err := h.Store.GetJobFiles(r.Context(), portal.JobID,
		[]string{db.FileKindVendorProof, db.FileKindCustomer})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"portal":         portal,
		"job":            job,
		"purchaseOrders": pos,
		"files":          jobFiles,
	})
}

// ConfirmPortalHandler handles POST /api/portal/{token}/confirm.
// Confirmation is one-shot: a second attempt is an error, not a no-op.
func (h *Handler) ConfirmPortalHandler(w http.ResponseWriter, r *http.Request) {
	portal, err := h.resolvePortal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var input struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, apperr.Validation("invalid JSON format"))
		return
	}
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	if input.Name == "" || input.Email == "" {
		writeError(w, apperr.Validation("name and email are required"))
		return
	}
	if portal.ConfirmedAt != nil {
		writeError(w, apperr.Conflict("portal is already confirmed"))
		return
	}

	job, err := h.Store.GetJob(r.Context(), portal.JobID)
	if err != nil {
		writeError(w, err)
		return
	}

	ev := &db.NotificationEvent{
		Kind:     db.EventPortalConfirmed,
		JobID:    &portal.JobID,
		PortalID: &portal.ID,
		Subject:  fmt.Sprintf("PO confirmed for job %s", job.JobNo),
		Body:     fmt.Sprintf("%s (%s) confirmed receipt of the PO for job %s.", input.Name, input.Email, job.JobNo),
	}
	updated, err := h.Store.ConfirmPortal(r.Context(), portal.ID, input.Name, input.Email, ev)
	if err != nil {
		if db.IsNotFound(err) {
			// Lost the race with another confirm.
			writeError(w, apperr.Conflict("portal is already confirmed"))
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// UpdatePortalStatusHandler handles POST /api/portal/{token}/status. Any of
// the four statuses may be set in any order — vendors correct mistakes —
// but SHIPPED always requires a tracking number, captured atomically with
// the transition.
func (h *Handler) UpdatePortalStatusHandler(w http.ResponseWriter, r *http.Request) {
	portal, err := h.resolvePortal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var input struct {
		Status          string `json:"status"`
		TrackingNumber  string `json:"trackingNumber"`
		TrackingCarrier string `json:"trackingCarrier"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, apperr.Validation("invalid JSON format"))
		return
	}
	input.TrackingNumber = strings.TrimSpace(input.TrackingNumber)

	switch input.Status {
	case db.VendorStatusPOReceived, db.VendorStatusInProduction,
		db.VendorStatusPrintingComplete, db.VendorStatusShipped:
	default:
		writeError(w, apperr.Validation("invalid status"))
		return
	}
	if input.Status == db.VendorStatusShipped && input.TrackingNumber == "" {
		writeError(w, apperr.Validation("trackingNumber is required when marking SHIPPED"))
		return
	}

	job, err := h.Store.GetJob(r.Context(), portal.JobID)
	if err != nil {
		writeError(w, err)
		return
	}

	ev := &db.NotificationEvent{
		Kind:     db.EventPortalStatusChanged,
		JobID:    &portal.JobID,
		PortalID: &portal.ID,
		Subject:  fmt.Sprintf("Job %s: vendor status %s", job.JobNo, input.Status),
		Body: notify.StatusChangeBody(job.JobNo, portal.VendorStatus, input.Status,
			input.TrackingNumber, input.TrackingCarrier),
	}
	updated, err := h.Store.UpdatePortalStatus(r.Context(), portal.ID,
		input.Status, input.TrackingNumber, input.TrackingCarrier, ev)
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.PortalStatusChanges.WithLabelValues(input.Status).Inc()

	writeJSON(w, http.StatusOK, updated)
}

// UploadPortalFilesHandler handles POST /api/portal/{token}/upload —
// multipart field "files", 1..10 files, 50MB each. One aggregate
// notification per batch, not per file.
func (h *Handler) UploadPortalFilesHandler(w http.ResponseWriter, r *http.Request) {
	portal, err := h.resolvePortal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apperr.Validation("invalid multipart form"))
		return
	}
	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		writeError(w, apperr.Validation("at least one file is required"))
		return
	}
	if len(fileHeaders) > maxUploadFiles {
		writeError(w, apperr.Validation(fmt.Sprintf("at most %d files per upload", maxUploadFiles)))
		return
	}

	uploaded := make([]db.JobFile, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		if fh.Size > maxFileSize {
			writeError(w, apperr.Validation(fmt.Sprintf("file %s exceeds the 50MB limit", fh.Filename)))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(w, err)
			return
		}

		key := files.ProofKey(portal.JobID, fh.Filename)
		hasher := sha256.New()
		err = h.Files.Put(r.Context(), key, io.TeeReader(f, hasher), fh.Size,
			fh.Header.Get("Content-Type"))
		f.Close()
		if err != nil {
			writeError(w, err)
			return
		}

		uploaded = append(uploaded, db.JobFile{
			ID:         uuid.New().String(),
			JobID:      portal.JobID,
			Kind:       db.FileKindVendorProof,
			Name:       fh.Filename,
			Size:       fh.Size,
			Checksum:   hex.EncodeToString(hasher.Sum(nil)),
			StorageKey: key,
		})
	}

	job, err := h.Store.GetJob(r.Context(), portal.JobID)
	if err != nil {
		writeError(w, err)
		return
	}
	names := make([]string, len(uploaded))
	for i, f := range uploaded {
		names[i] = f.Name
	}
	ev := &db.NotificationEvent{
		Kind:     db.EventPortalFilesUploaded,
		JobID:    &portal.JobID,
		PortalID: &portal.ID,
		Subject:  fmt.Sprintf("Job %s: vendor uploaded %d file(s)", job.JobNo, len(uploaded)),
		Body:     "Uploaded: " + strings.Join(names, ", "),
	}
	if err := h.Store.AddJobFiles(r.Context(), uploaded, ev); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"files":   uploaded,
	})
}

// DownloadAllHandler handles GET /api/portal/{token}/download-all — a zip
// stream of the job's non-administrative files.
func (h *Handler) DownloadAllHandler(w http.ResponseWriter, r *http.Request) {
	portal, err := h.resolvePortal(r)
	if err != nil {
		writeError(w, err)
		return
	}

	jobFiles, err := h.Store.GetJobFiles(r.Context(), portal.JobID,
		[]string{db.FileKindVendorProof, db.FileKindCustomer})
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="job-files.zip"`)
	zw := zip.NewWriter(w)
	for _, jf := range jobFiles {
		src, err := h.Files.Get(r.Context(), jf.StorageKey)
		if err != nil {
			log.Printf("download %s: %v", jf.StorageKey, err)
			continue
		}
		dst, err := zw.Create(jf.Name)
		if err != nil {
			src.Close()
			break
		}
		if _, err := io.Copy(dst, src); err != nil {
			log.Printf("download %s: %v", jf.StorageKey, err)
		}
		src.Close()
	}
	if err := zw.Close(); err != nil {
		log.Printf("zip close: %v", err)
	}
}
