package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"printbroker/db"
	"printbroker/db/migrations"
	"printbroker/internal/files"
	"printbroker/internal/handlers"
	"printbroker/internal/notify"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		log.Fatal("POSTGRES_CONN env variable is not set")
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		log.Fatalf("Cannot connect to DB: %v", err)
	}
	defer dbConn.Close()

	migrations.Run()

	store := db.NewStorage(dbConn)

	fileStore, err := files.NewMinioStore(files.MinioConfig{
		Endpoint:  os.Getenv("MINIO_ENDPOINT"),
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    os.Getenv("MINIO_BUCKET"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	})
	if err != nil {
		log.Fatalf("Cannot connect to object storage: %v", err)
	}

	h := handlers.NewHandler(store, fileStore)

	// Outbox dispatcher runs for the lifetime of the process. LogSender
	// stands in until the mail transport is wired.
	dispatcher := notify.NewDispatcher(store, notify.LogSender{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Run(ctx)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// RFQ lifecycle
		r.Post("/vendor-rfqs", h.CreateRFQHandler)
		r.Get("/vendor-rfqs", h.GetRFQsHandler)
		r.Get("/vendor-rfqs/{id}", h.GetRFQHandler)
		r.Delete("/vendor-rfqs/{id}", h.DeleteRFQHandler)
		r.Post("/vendor-rfqs/{id}/send", h.SendRFQHandler)
		r.Post("/vendor-rfqs/{id}/quotes", h.RecordQuoteHandler)
		r.Post("/vendor-rfqs/{id}/award/{vendorId}", h.AwardQuoteHandler)
		r.Post("/vendor-rfqs/{id}/convert-to-job", h.ConvertRFQHandler)
		r.Post("/vendor-rfqs/{id}/cancel", h.CancelRFQHandler)
		r.Post("/vendor-rfqs/{id}/vendors", h.AddRFQVendorHandler)
		// Staff portal issuance
		r.Post("/jobs/{id}/portal", h.IssuePortalHandler)
		// Vendor portal (token is the whole credential)
		r.Get("/portal/{token}", h.GetPortalHandler)
		r.Post("/portal/{token}/confirm", h.ConfirmPortalHandler)
		r.Post("/portal/{token}/status", h.UpdatePortalStatusHandler)
		r.Post("/portal/{token}/upload", h.UploadPortalFilesHandler)
		r.Get("/portal/{token}/download-all", h.DownloadAllHandler)
	})

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	log.Printf("Starting server on %s", serverAddr)
	log.Fatal(http.ListenAndServe(serverAddr, r))
}
