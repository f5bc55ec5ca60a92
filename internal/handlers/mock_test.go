package handlers_test

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"printbroker/db"
)

// MockStorage is an in-memory StorageInterface. It mirrors the database
// semantics the handlers rely on (upsert keyed by rfq+vendor, clear-then-set
// award, confirm-only-once) so multi-step flows can be exercised end to end.
type MockStorage struct {
	vendors    map[string]db.Vendor
	recipients map[string]string
	customers  map[string]db.Customer
	jobs       map[string]*db.Job
	rfqs       map[string]*db.VendorRFQ
	assigned   map[string][]string
	quotes     map[string]*db.VendorQuote
	portals    map[string]*db.JobPortal
	tokens     map[string]string
	statusLog  []db.PortalStatusLog
	files      []db.JobFile
	events     []db.NotificationEvent
	pos        map[string]*db.PurchaseOrder

	rfqSeq int
	jobSeq int

	enqueueErr error
}

func newMockStorage() *MockStorage {
	return &MockStorage{
		vendors:    map[string]db.Vendor{},
		recipients: map[string]string{},
		customers:  map[string]db.Customer{},
		jobs:       map[string]*db.Job{},
		rfqs:       map[string]*db.VendorRFQ{},
		assigned:   map[string][]string{},
		quotes:     map[string]*db.VendorQuote{},
		portals:    map[string]*db.JobPortal{},
		tokens:     map[string]string{},
		pos:        map[string]*db.PurchaseOrder{},
	}
}

func (m *MockStorage) addVendor(id, name, email string) {
	m.vendors[id] = db.Vendor{ID: id, Name: name, Email: email}
	m.recipients[id] = email
}

func quoteKey(rfqID, vendorID string) string { return rfqID + "|" + vendorID }

func (m *MockStorage) GetVendorsByIDs(ctx context.Context, ids []string) ([]db.Vendor, error) {
	out := []db.Vendor{}
	for _, id := range ids {
		if v, ok := m.vendors[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockStorage) GetVendorRecipient(ctx context.Context, vendorID string) (string, error) {
	return m.recipients[vendorID], nil
}

func (m *MockStorage) GetCustomer(ctx context.Context, id string) (*db.Customer, error) {
	if c, ok := m.customers[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *MockStorage) GetJob(ctx context.Context, id string) (*db.Job, error) {
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *MockStorage) NextRFQNumber(ctx context.Context, now time.Time) (string, error) {
	m.rfqSeq++
	return fmt.Sprintf("RFQ-%s-%03d", now.Format("20060102"), m.rfqSeq), nil
}

func (m *MockStorage) NextJobNumber(ctx context.Context) (string, error) {
	m.jobSeq++
	return fmt.Sprintf("J-%04d", m.jobSeq), nil
}

func (m *MockStorage) CreateRFQ(ctx context.Context, rfq *db.VendorRFQ, vendorIDs []string) error {
	rfq.CreatedAt = time.Now()
	m.rfqs[rfq.ID] = rfq
	m.assigned[rfq.ID] = append([]string{}, vendorIDs...)
	return nil
}

func (m *MockStorage) GetRFQ(ctx context.Context, id string) (*db.VendorRFQ, error) {
	if rfq, ok := m.rfqs[id]; ok {
		cp := *rfq
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *MockStorage) GetRFQs(ctx context.Context, limit, offset int) ([]db.VendorRFQ, error) {
	out := []db.VendorRFQ{}
	for _, rfq := range m.rfqs {
		out = append(out, *rfq)
	}
	return out, nil
}

func (m *MockStorage) UpdateRFQStatus(ctx context.Context, id, status string) error {
	if rfq, ok := m.rfqs[id]; ok {
		rfq.Status = status
	}
	return nil
}

func (m *MockStorage) DeleteRFQ(ctx context.Context, id string) error {
	delete(m.rfqs, id)
	delete(m.assigned, id)
	return nil
}

func (m *MockStorage) GetRFQVendors(ctx context.Context, rfqID string) ([]db.Vendor, error) {
	out := []db.Vendor{}
	for _, vid := range m.assigned[rfqID] {
		if v, ok := m.vendors[vid]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *MockStorage) IsVendorAssigned(ctx context.Context, rfqID, vendorID string) (bool, error) {
	for _, vid := range m.assigned[rfqID] {
		if vid == vendorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStorage) AddRFQVendor(ctx context.Context, rfqID, vendorID string) error {
	if ok, _ := m.IsVendorAssigned(ctx, rfqID, vendorID); !ok {
		m.assigned[rfqID] = append(m.assigned[rfqID], vendorID)
	}
	if rfq, ok := m.rfqs[rfqID]; ok && rfq.Status == db.RFQStatusQuoted {
		rfq.Status = db.RFQStatusPending
	}
	return nil
}

func (m *MockStorage) UpsertQuote(ctx context.Context, q *db.VendorQuote) error {
	key := quoteKey(q.RFQID, q.VendorID)
	if existing, ok := m.quotes[key]; ok {
		q.ID = existing.ID
		q.IsAwarded = existing.IsAwarded
	}
	cp := *q
	m.quotes[key] = &cp
	return nil
}

func (m *MockStorage) GetQuote(ctx context.Context, rfqID, vendorID string) (*db.VendorQuote, error) {
	if q, ok := m.quotes[quoteKey(rfqID, vendorID)]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *MockStorage) GetQuotesForRFQ(ctx context.Context, rfqID string) ([]db.VendorQuote, error) {
	out := []db.VendorQuote{}
	for _, q := range m.quotes {
		if q.RFQID == rfqID {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (m *MockStorage) CountVendorsWithoutReceivedQuote(ctx context.Context, rfqID string) (int, error) {
	missing := 0
	for _, vid := range m.assigned[rfqID] {
		q, ok := m.quotes[quoteKey(rfqID, vid)]
		if !ok || q.Status != db.QuoteStatusReceived {
			missing++
		}
	}
	return missing, nil
}

func (m *MockStorage) AwardQuote(ctx context.Context, rfqID, vendorID string) (*db.VendorQuote, error) {
	target, ok := m.quotes[quoteKey(rfqID, vendorID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	for _, q := range m.quotes {
		if q.RFQID == rfqID {
			q.IsAwarded = false
		}
	}
	target.IsAwarded = true
	if rfq, ok := m.rfqs[rfqID]; ok {
		rfq.Status = db.RFQStatusAwarded
	}
	cp := *target
	return &cp, nil
}

func (m *MockStorage) GetAwardedQuote(ctx context.Context, rfqID string) (*db.VendorQuote, error) {
	for _, q := range m.quotes {
		if q.RFQID == rfqID && q.IsAwarded {
			cp := *q
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *MockStorage) ConvertRFQToExistingJob(ctx context.Context, rfqID, jobID, vendorID string, price float64) error {
	if j, ok := m.jobs[jobID]; ok {
		j.VendorID = &vendorID
		j.Price = &price
	}
	if rfq, ok := m.rfqs[rfqID]; ok {
		rfq.Status = db.RFQStatusConverted
	}
	return nil
}

func (m *MockStorage) ConvertRFQToNewJob(ctx context.Context, rfqID string, job *db.Job) error {
	rfq, ok := m.rfqs[rfqID]
	if !ok || rfq.Status == db.RFQStatusConverted {
		return sql.ErrNoRows
	}
	cp := *job
	m.jobs[job.ID] = &cp
	rfq.Status = db.RFQStatusConverted
	rfq.JobID = &cp.ID
	return nil
}

func (m *MockStorage) UpsertPortal(ctx context.Context, p *db.JobPortal) error {
	for _, existing := range m.portals {
		if existing.JobID == p.JobID {
			delete(m.tokens, existing.ShareToken)
			existing.ShareToken = p.ShareToken
			existing.PurchaseOrderID = p.PurchaseOrderID
			existing.ExpiresAt = p.ExpiresAt
			m.tokens[p.ShareToken] = existing.ID
			*p = *existing
			return nil
		}
	}
	p.VendorStatus = db.VendorStatusNone
	p.CreatedAt = time.Now()
	cp := *p
	m.portals[p.ID] = &cp
	m.tokens[p.ShareToken] = p.ID
	return nil
}

func (m *MockStorage) GetPortalByToken(ctx context.Context, token string) (*db.JobPortal, error) {
	if id, ok := m.tokens[token]; ok {
		cp := *m.portals[id]
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *MockStorage) TouchPortalAccess(ctx context.Context, portalID string) error {
	if p, ok := m.portals[portalID]; ok {
		p.AccessCount++
		now := time.Now()
		p.AccessedAt = &now
	}
	return nil
}

func (m *MockStorage) ConfirmPortal(ctx context.Context, portalID, name, email string, ev *db.NotificationEvent) (*db.JobPortal, error) {
	p, ok := m.portals[portalID]
	if !ok || p.ConfirmedAt != nil {
		return nil, sql.ErrNoRows
	}
	now := time.Now()
	p.ConfirmedAt = &now
	p.ConfirmedByName = name
	p.ConfirmedByEmail = email
	if p.VendorStatus == db.VendorStatusNone {
		p.VendorStatus = db.VendorStatusPOReceived
		p.StatusUpdatedAt = &now
	}
	if ev != nil {
		m.events = append(m.events, *ev)
	}
	cp := *p
	return &cp, nil
}

func (m *MockStorage) UpdatePortalStatus(ctx context.Context, portalID, newStatus, trackingNumber, trackingCarrier string, ev *db.NotificationEvent) (*db.JobPortal, error) {
	p, ok := m.portals[portalID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	m.statusLog = append(m.statusLog, db.PortalStatusLog{
		PortalID: portalID, OldStatus: p.VendorStatus, NewStatus: newStatus,
	})
	now := time.Now()
	p.VendorStatus = newStatus
	p.StatusUpdatedAt = &now
	if trackingNumber != "" {
		p.TrackingNumber = trackingNumber
	}
	if trackingCarrier != "" {
		p.TrackingCarrier = trackingCarrier
	}
	if ev != nil {
		m.events = append(m.events, *ev)
	}
	cp := *p
	return &cp, nil
}

func (m *MockStorage) GetPurchaseOrder(ctx context.Context, id string) (*db.PurchaseOrder, error) {
	if po, ok := m.pos[id]; ok {
		cp := *po
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *MockStorage) GetPurchaseOrdersForJob(ctx context.Context, jobID string) ([]db.PurchaseOrder, error) {
	out := []db.PurchaseOrder{}
	for _, po := range m.pos {
		if po.JobID == jobID {
			out = append(out, *po)
		}
	}
	return out, nil
}

func (m *MockStorage) AddJobFiles(ctx context.Context, files []db.JobFile, ev *db.NotificationEvent) error {
	m.files = append(m.files, files...)
	if ev != nil {
		m.events = append(m.events, *ev)
	}
	return nil
}

func (m *MockStorage) GetJobFiles(ctx context.Context, jobID string, kinds []string) ([]db.JobFile, error) {
	out := []db.JobFile{}
	for _, f := range m.files {
		if f.JobID != jobID {
			continue
		}
		if len(kinds) == 0 {
			out = append(out, f)
			continue
		}
		for _, k := range kinds {
			if f.Kind == k {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}

func (m *MockStorage) EnqueueEvent(ctx context.Context, ev *db.NotificationEvent) error {
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.events = append(m.events, *ev)
	return nil
}

// MockFileStore keeps file bytes in memory.
type MockFileStore struct {
	objects map[string][]byte
}

func newMockFileStore() *MockFileStore {
	return &MockFileStore{objects: map[string][]byte{}}
}

func (m *MockFileStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *MockFileStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
