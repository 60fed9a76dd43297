package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/backoffice-api/internal/dto"
	"github.com/noah-isme/backoffice-api/internal/models"
	"github.com/noah-isme/backoffice-api/internal/workflow"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
	"github.com/noah-isme/backoffice-api/pkg/export"
	"github.com/noah-isme/backoffice-api/pkg/jobs"
	"github.com/noah-isme/backoffice-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	GetByToken(ctx context.Context, token string) (*models.ExportJob, error)
	ListByRequester(ctx context.Context, userID string, limit int) ([]models.ExportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, filePath, token, url string, expiresAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	DeleteExpired(ctx context.Context, now time.Time) ([]string, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService queues catalog and dispatch exports, renders them in the
// background, and serves the artifacts behind signed download tokens.
type ExportService struct {
	repo     exportJobStore
	products productStore
	dispatch dispatchStore
	storage  fileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	queue    jobEnqueuer
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService. The queue is attached later
// via SetQueue because the queue handler needs the service.
func NewExportService(repo exportJobStore, products productStore, dispatch dispatchStore, fileStore fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	return &ExportService{
		repo:     repo,
		products: products,
		dispatch: dispatch,
		storage:  fileStore,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetQueue wires the background queue used for processing.
func (s *ExportService) SetQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Request records a new export job and hands it to the worker pool.
func (s *ExportService) Request(ctx context.Context, req dto.CreateExportRequest, userID string) (*models.ExportJob, error) {
	job := &models.ExportJob{
		Type:        req.Type,
		Format:      req.Format,
		Status:      models.ExportStatusQueued,
		RequestedBy: userID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export processing is disabled")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type), Payload: job.ID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

// Get returns an export job scoped to its requester; admins see everything.
func (s *ExportService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.ExportJob, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if !actor.Role.IsSystemAdmin() && job.RequestedBy != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	return job, nil
}

// ListMine returns the actor's recent export jobs.
func (s *ExportService) ListMine(ctx context.Context, userID string, limit int) ([]models.ExportJob, error) {
	jobsList, err := s.repo.ListByRequester(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return jobsList, nil
}

// Process is the queue handler: it renders and stores one export job. Errors
// are returned to the queue so its retry policy applies; the job row records
// the last failure either way.
func (s *ExportService) Process(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok || jobID == "" {
		return fmt.Errorf("export job payload missing id")
	}
	if err := s.repo.MarkProcessing(ctx, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("export job not in a runnable state", zap.String("job_id", jobID))
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}

	record, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load export job: %w", err)
	}

	if err := s.generate(ctx, record); err != nil {
		if markErr := s.repo.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.Error("failed to record export failure", zap.String("job_id", jobID), zap.Error(markErr))
		}
		return err
	}
	return nil
}

func (s *ExportService) generate(ctx context.Context, job *models.ExportJob) error {
	dataset, title, err := s.buildDataset(ctx, job.Type)
	if err != nil {
		return err
	}

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("%s_%s.%s",
		strings.ToLower(string(job.Type)), time.Now().UTC().Format("20060102_150405"), job.Format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/exports/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)
	return s.repo.MarkCompleted(ctx, job.ID, relPath, token, url, expiresAt)
}

// Download validates a signed token and opens the artifact it points at.
func (s *ExportService) Download(ctx context.Context, token string) (*models.ExportJob, *os.File, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusCompleted {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export is not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return job, file, nil
}

// Cleanup drops expired job rows and their artifacts plus any orphaned files
// older than the result TTL.
func (s *ExportService) Cleanup(ctx context.Context) {
	paths, err := s.repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Warn("export cleanup query failed", zap.Error(err))
	}
	for _, path := range paths {
		if err := s.storage.Delete(path); err != nil {
			s.logger.Warn("export artifact delete failed", zap.String("path", path), zap.Error(err))
		}
	}
	if removed, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL); err != nil {
		s.logger.Warn("export storage cleanup failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("export artifacts removed", zap.Int("count", len(removed)))
	}
}

func (s *ExportService) buildDataset(ctx context.Context, exportType models.ExportType) (export.Dataset, string, error) {
	switch exportType {
	case models.ExportTypeProductCatalog:
		return s.buildProductDataset(ctx)
	case models.ExportTypeDispatchSummary:
		return s.buildDispatchDataset(ctx)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", exportType)
	}
}

func (s *ExportService) buildProductDataset(ctx context.Context) (export.Dataset, string, error) {
	rows := make([]map[string]string, 0, 128)
	for page := 1; ; page++ {
		products, total, err := s.products.List(ctx, models.ProductFilter{Page: page, PageSize: 100, SortBy: "sku", SortOrder: "ASC"})
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, product := range products {
			active := "no"
			if product.Active {
				active = "yes"
			}
			rows = append(rows, map[string]string{
				"SKU":        product.SKU,
				"Name":       product.Name,
				"Unit Price": fmt.Sprintf("%.2f", product.UnitPrice),
				"Active":     active,
				"Updated At": product.UpdatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(rows) >= total || len(products) == 0 {
			break
		}
	}
	dataset := export.Dataset{
		Headers: []string{"SKU", "Name", "Unit Price", "Active", "Updated At"},
		Rows:    rows,
	}
	return dataset, "Product Catalog", nil
}

func (s *ExportService) buildDispatchDataset(ctx context.Context) (export.Dataset, string, error) {
	rows := make([]map[string]string, 0, 128)
	fetched := 0
	for page := 1; ; page++ {
		dispatches, total, err := s.dispatch.List(ctx, models.DispatchFilter{Page: page, PageSize: 100, SortBy: "created_at", SortOrder: "DESC"})
		if err != nil {
			return export.Dataset{}, "", err
		}
		fetched += len(dispatches)
		for _, dispatch := range dispatches {
			progress := workflow.DeriveReceiptProgress(dispatch.Items)
			rows = append(rows, map[string]string{
				"Dispatch":   dispatch.DispatchNumber,
				"Type":       string(dispatch.Type),
				"Status":     string(workflow.DeriveDispatchStatus(dispatch.Items)),
				"Quantity":   fmt.Sprintf("%d", progress.TotalQuantity),
				"Received":   fmt.Sprintf("%d", progress.ReceivedQuantity),
				"Returned":   fmt.Sprintf("%d", progress.ReturnedQuantity),
				"Created At": dispatch.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if fetched >= total || len(dispatches) == 0 {
			break
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Dispatch", "Type", "Status", "Quantity", "Received", "Returned", "Created At"},
		Rows:    rows,
	}
	return dataset, "Dispatch Summary", nil
}
