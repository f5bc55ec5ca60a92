package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"printbroker/db"
	"printbroker/internal/apperr"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateRFQHandler handles POST /api/vendor-rfqs.
func (h *Handler) CreateRFQHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var input struct {
		Title     string    `json:"title"`
		Specs     string    `json:"specs"`
		DueDate   time.Time `json:"dueDate"`
		VendorIDs []string  `json:"vendorIds"`
		Notes     string    `json:"notes"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, apperr.Validation("invalid JSON format"))
		return
	}

	if err := validateCreateRFQ(input.Title, input.Specs, input.DueDate, input.VendorIDs); err != nil {
		writeError(w, err)
		return
	}

	// Every invitee must resolve to an existing vendor.
	vendors, err := h.Store.GetVendorsByIDs(r.Context(), input.VendorIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	known := make(map[string]bool, len(vendors))
	for _, v := range vendors {
		known[v.ID] = true
	}
	for _, vid := range input.VendorIDs {
		if !known[vid] {
			writeError(w, apperr.Validation(fmt.Sprintf("unknown vendor %s", vid)))
			return
		}
	}

	rfqNumber, err := h.Store.NextRFQNumber(r.Context(), time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	rfq := &db.VendorRFQ{
		ID:        uuid.New().String(),
		RFQNumber: rfqNumber,
		Title:     input.Title,
		Specs:     input.Specs,
		DueDate:   input.DueDate,
		Notes:     input.Notes,
		Status:    db.RFQStatusDraft,
	}
	if err := h.Store.CreateRFQ(r.Context(), rfq, dedupe(input.VendorIDs)); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rfq)
}

func validateCreateRFQ(title, specs string, dueDate time.Time, vendorIDs []string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.Validation("title is required")
	}
	if strings.TrimSpace(specs) == "" {
		return apperr.Validation("specs is required")
	}
	if dueDate.IsZero() {
		return apperr.Validation("dueDate is required")
	}
	if len(vendorIDs) == 0 {
		return apperr.Validation("at least one vendor is required")
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// SendResult reports the outcome of one vendor's invite.
type SendResult struct {
	VendorID   string `json:"vendorId"`
	VendorName string `json:"vendorName"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

// SendRFQHandler handles POST /api/vendor-rfqs/{id}/send. Distribution is
// best-effort per vendor: a vendor without a resolvable email is reported
// as failed but does not abort the batch, and the RFQ moves to PENDING
// regardless. Retrying individual failures is a manual follow-up.
func (h *Handler) SendRFQHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}
	if rfq.Status != db.RFQStatusDraft {
		writeError(w, apperr.Conflict("RFQ can only be sent from DRAFT"))
		return
	}

	vendors, err := h.Store.GetRFQVendors(r.Context(), rfqID)
	if err != nil {
		writeError(w, err)
		return
	}

	results := make([]SendResult, 0, len(vendors))
	for _, v := range vendors {
		res := SendResult{VendorID: v.ID, VendorName: v.Name}
		email, err := h.Store.GetVendorRecipient(r.Context(), v.ID)
		if err != nil || email == "" {
			res.Error = "no email on file"
			results = append(results, res)
			continue
		}
		ev := &db.NotificationEvent{
			Kind:      db.EventRFQInvite,
			RFQID:     &rfq.ID,
			Recipient: email,
			Subject:   fmt.Sprintf("RFQ %s: %s", rfq.RFQNumber, rfq.Title),
			Body:      fmt.Sprintf("Quote requested by %s.\n\n%s", rfq.DueDate.Format("2006-01-02"), rfq.Specs),
		}
		if err := h.Store.EnqueueEvent(r.Context(), ev); err != nil {
			res.Error = "failed to queue email"
			results = append(results, res)
			continue
		}
		res.Success = true
		results = append(results, res)
	}

	// "Sent" means staff attempted distribution, not that every vendor
	// received it.
	if err := h.Store.UpdateRFQStatus(r.Context(), rfqID, db.RFQStatusPending); err != nil {
		writeError(w, err)
		return
	}

	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("sent to %d of %d vendors", len(results)-failed, len(results)),
		"results": results,
	})
}

// RecordQuoteHandler handles POST /api/vendor-rfqs/{id}/quotes. Quotes are
// entered by staff on a vendor's behalf; a second call for the same vendor
// overwrites the previous entry so typos can be corrected.
func (h *Handler) RecordQuoteHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var input struct {
		VendorID       string  `json:"vendorId"`
		QuoteAmount    float64 `json:"quoteAmount"`
		TurnaroundDays *int    `json:"turnaroundDays"`
		Notes          string  `json:"notes"`
		Status         string  `json:"status"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, apperr.Validation("invalid JSON format"))
		return
	}
	if input.VendorID == "" {
		writeError(w, apperr.Validation("vendorId is required"))
		return
	}
	if input.Status == "" {
		input.Status = db.QuoteStatusReceived
	}
	switch input.Status {
	case db.QuoteStatusPending, db.QuoteStatusReceived, db.QuoteStatusDeclined:
	default:
		writeError(w, apperr.Validation("invalid quote status"))
		return
	}
	if input.Status == db.QuoteStatusReceived && input.QuoteAmount <= 0 {
		writeError(w, apperr.Validation("quoteAmount must be positive"))
		return
	}

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}

	assigned, err := h.Store.IsVendorAssigned(r.Context(), rfqID, input.VendorID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !assigned {
		writeError(w, apperr.Conflict("vendor is not assigned to this RFQ"))
		return
	}

	now := time.Now()
	quote := &db.VendorQuote{
		ID:             uuid.New().String(),
		RFQID:          rfqID,
		VendorID:       input.VendorID,
		QuoteAmount:    input.QuoteAmount,
		TurnaroundDays: input.TurnaroundDays,
		Notes:          input.Notes,
		Status:         input.Status,
		RespondedAt:    &now,
	}
	if err := h.Store.UpsertQuote(r.Context(), quote); err != nil {
		writeError(w, err)
		return
	}

	// Derived-state rule: QUOTED is reachable only when every invited
	// vendor has responded, never by direct staff action.
	if rfq.Status == db.RFQStatusPending {
		missing, err := h.Store.CountVendorsWithoutReceivedQuote(r.Context(), rfqID)
		if err == nil && missing == 0 {
			if err := h.Store.UpdateRFQStatus(r.Context(), rfqID, db.RFQStatusQuoted); err != nil {
				writeError(w, err)
				return
			}
		}
	}

	writeJSON(w, http.StatusOK, quote)
}

// AwardQuoteHandler handles POST /api/vendor-rfqs/{id}/award/{vendorId}.
// Re-awarding while the RFQ stays AWARDED is allowed; picking a different
// winner is a correction, not a one-shot action.
func (h *Handler) AwardQuoteHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")
	vendorID := chi.URLParam(r, "vendorId")

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}
	if rfq.Status == db.RFQStatusConverted {
		writeError(w, apperr.Conflict("RFQ is already converted"))
		return
	}
	if rfq.Status == db.RFQStatusCancelled {
		writeError(w, apperr.Conflict("RFQ is cancelled"))
		return
	}

	quote, err := h.Store.GetQuote(r.Context(), rfqID, vendorID)
	if err != nil || quote.Status != db.QuoteStatusReceived {
		writeError(w, apperr.Conflict("no received quote from this vendor"))
		return
	}

	awarded, err := h.Store.AwardQuote(r.Context(), rfqID, vendorID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"awardedQuote": awarded,
	})
}

// ConvertRFQHandler handles POST /api/vendor-rfqs/{id}/convert-to-job.
// Conversion is irreversible: there is no un-convert.
func (h *Handler) ConvertRFQHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var input struct {
		CustomerID string `json:"customerId"`
		Title      string `json:"title"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &input); err != nil {
			writeError(w, apperr.Validation("invalid JSON format"))
			return
		}
	}

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}
	if rfq.Status == db.RFQStatusConverted {
		writeError(w, apperr.Conflict("RFQ is already converted"))
		return
	}

	quote, err := h.Store.GetAwardedQuote(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.Conflict("RFQ has no awarded quote"))
			return
		}
		writeError(w, err)
		return
	}

	// Path (a): the RFQ is already linked to a job created elsewhere. The
	// award is applied to that job; no customer needed.
	if rfq.JobID != nil {
		if err := h.Store.ConvertRFQToExistingJob(r.Context(), rfqID, *rfq.JobID, quote.VendorID, quote.QuoteAmount); err != nil {
			writeError(w, err)
			return
		}
		job, err := h.Store.GetJob(r.Context(), *rfq.JobID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"jobId":   job.ID,
			"jobNo":   job.JobNo,
		})
		return
	}

	// Path (b): mint a new job from the award.
	if input.CustomerID == "" {
		writeError(w, apperr.Validation("customerId is required"))
		return
	}
	if _, err := h.Store.GetCustomer(r.Context(), input.CustomerID); err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("customer not found"))
			return
		}
		writeError(w, err)
		return
	}

	jobNo, err := h.Store.NextJobNumber(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	title := rfq.Title
	if input.Title != "" {
		title = input.Title
	}
	job := &db.Job{
		ID:         uuid.New().String(),
		JobNo:      jobNo,
		Title:      title,
		CustomerID: input.CustomerID,
		VendorID:   &quote.VendorID,
		Price:      &quote.QuoteAmount,
		Status:     "OPEN",
		Spec: db.JobSpec{
			SourceRFQNumber: rfq.RFQNumber,
			SourceSpecs:     rfq.Specs,
		},
	}
	if err := h.Store.ConvertRFQToNewJob(r.Context(), rfqID, job); err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.Conflict("RFQ is already converted"))
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"jobId":   job.ID,
		"jobNo":   job.JobNo,
	})
}

// CancelRFQHandler handles POST /api/vendor-rfqs/{id}/cancel.
func (h *Handler) CancelRFQHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}
	if rfq.Status == db.RFQStatusConverted {
		writeError(w, apperr.Conflict("converted RFQs cannot be cancelled"))
		return
	}
	if err := h.Store.UpdateRFQStatus(r.Context(), rfqID, db.RFQStatusCancelled); err != nil {
		writeError(w, err)
		return
	}
	rfq.Status = db.RFQStatusCancelled
	writeJSON(w, http.StatusOK, rfq)
}

// DeleteRFQHandler handles DELETE /api/vendor-rfqs/{id}. Only drafts can be
// destroyed.
func (h *Handler) DeleteRFQHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}
	if rfq.Status != db.RFQStatusDraft {
		writeError(w, apperr.Conflict("only draft RFQs can be deleted"))
		return
	}
	if err := h.Store.DeleteRFQ(r.Context(), rfqID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddRFQVendorHandler handles POST /api/vendor-rfqs/{id}/vendors. Inviting
// a vendor after responses completed drops the RFQ back to PENDING so it
// never sits QUOTED with an unanswered invitee.
func (h *Handler) AddRFQVendorHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apperr.Validation("failed to read request body"))
		return
	}
	defer r.Body.Close()

	var input struct {
		VendorID string `json:"vendorId"`
	}
	if err := json.Unmarshal(body, &input); err != nil || input.VendorID == "" {
		writeError(w, apperr.Validation("vendorId is required"))
		return
	}

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}
	if rfq.Status == db.RFQStatusConverted || rfq.Status == db.RFQStatusCancelled {
		writeError(w, apperr.Conflict("RFQ no longer accepts vendors"))
		return
	}

	vendors, err := h.Store.GetVendorsByIDs(r.Context(), []string{input.VendorID})
	if err != nil {
		writeError(w, err)
		return
	}
	if len(vendors) == 0 {
		writeError(w, apperr.Validation(fmt.Sprintf("unknown vendor %s", input.VendorID)))
		return
	}

	if err := h.Store.AddRFQVendor(r.Context(), rfqID, input.VendorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// GetRFQsHandler handles GET /api/vendor-rfqs.
func (h *Handler) GetRFQsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	rfqs, err := h.Store.GetRFQs(r.Context(), params.Limit, params.Offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rfqs)
}

// GetRFQHandler handles GET /api/vendor-rfqs/{id}, with invitees and quotes.
func (h *Handler) GetRFQHandler(w http.ResponseWriter, r *http.Request) {
	rfqID := chi.URLParam(r, "id")

	rfq, err := h.Store.GetRFQ(r.Context(), rfqID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, apperr.NotFound("RFQ not found"))
			return
		}
		writeError(w, err)
		return
	}
	vendors, err := h.Store.GetRFQVendors(r.Context(), rfqID)
	if err != nil {
		writeError(w, err)
		return
	}
	quotes, err := h.Store.GetQuotesForRFQ(r.Context(), rfqID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rfq":     rfq,
		"vendors": vendors,
		"quotes":  quotes,
	})
}
