package handlers

import (
	"context"
	"time"

	"printbroker/db"
)

type StorageInterface interface {
	GetVendorsByIDs(ctx context.Context, ids []string) ([]db.Vendor, error)
	GetVendorRecipient(ctx context.Context, vendorID string) (string, error)
	GetCustomer(ctx context.Context, id string) (*db.Customer, error)
	GetJob(ctx context.Context, id string) (*db.Job, error)

	NextRFQNumber(ctx context.Context, now time.Time) (string, error)
	NextJobNumber(ctx context.Context) (string, error)

	CreateRFQ(ctx context.Context, rfq *db.VendorRFQ, vendorIDs []string) error
	GetRFQ(ctx context.Context, id string) (*db.VendorRFQ, error)
	GetRFQs(ctx context.Context, limit, offset int) ([]db.VendorRFQ, error)
	UpdateRFQStatus(ctx context.Context, id, status string) error
	DeleteRFQ(ctx context.Context, id string) error
	GetRFQVendors(ctx context.Context, rfqID string) ([]db.Vendor, error)
	IsVendorAssigned(ctx context.Context, rfqID, vendorID string) (bool, error)
	AddRFQVendor(ctx context.Context, rfqID, vendorID string) error

	UpsertQuote(ctx context.Context, q *db.VendorQuote) error
	GetQuote(ctx context.Context, rfqID, vendorID string) (*db.VendorQuote, error)
	GetQuotesForRFQ(ctx context.Context, rfqID string) ([]db.VendorQuote, error)
	CountVendorsWithoutReceivedQuote(ctx context.Context, rfqID string) (int, error)
	AwardQuote(ctx context.Context, rfqID, vendorID string) (*db.VendorQuote, error)
	GetAwardedQuote(ctx context.Context, rfqID string) (*db.VendorQuote, error)
	ConvertRFQToExistingJob(ctx context.Context, rfqID, jobID, vendorID string, price float64) error
	ConvertRFQToNewJob(ctx context.Context, rfqID string, job *db.Job) error

	UpsertPortal(ctx context.Context, p *db.JobPortal) error
	GetPortalByToken(ctx context.Context, token string) (*db.JobPortal, error)
	TouchPortalAccess(ctx context.Context, portalID string) error
	ConfirmPortal(ctx context.Context, portalID, name, email string, ev *db.NotificationEvent) (*db.JobPortal, error)
	UpdatePortalStatus(ctx context.Context, portalID, newStatus, trackingNumber, trackingCarrier string, ev *db.NotificationEvent) (*db.JobPortal, error)

	GetPurchaseOrder(ctx context.Context, id string) (*db.PurchaseOrder, error)
	GetPurchaseOrdersForJob(ctx context.Context, jobID string) ([]db.PurchaseOrder, error)
	AddJobFiles(ctx context.Context, files []db.JobFile, ev *db.NotificationEvent) error
	GetJobFiles(ctx context.Context, jobID string, kinds []string) ([]db.JobFile, error)

	EnqueueEvent(ctx context.Context, ev *db.NotificationEvent) error
}
