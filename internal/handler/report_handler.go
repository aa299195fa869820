package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shrs-dev/report-vault/internal/dto"
	"github.com/shrs-dev/report-vault/internal/models"
	"github.com/shrs-dev/report-vault/internal/service"
	appErrors "github.com/shrs-dev/report-vault/pkg/errors"
	"github.com/shrs-dev/report-vault/pkg/response"
	"github.com/shrs-dev/report-vault/pkg/storage"
)

type uploadCoordinator interface {
	Upload(ctx context.Context, meta dto.UploadReportRequest, upload service.ReportUpload, progress service.ProgressFunc) (*models.ReportRecord, error)
}

type deleteCoordinator interface {
	Delete(ctx context.Context, patientID, reportID string) error
}

type catalogEngine interface {
	List(ctx context.Context, query models.CatalogQuery) ([]models.CatalogEntry, error)
	Get(ctx context.Context, patientID, reportID string) (*models.ReportRecord, error)
	BeginEdit(patientID, reportID string) error
	CancelEdit(patientID, reportID string) error
	Save(ctx context.Context, patientID, reportID string, patch models.ReportPatch) (*models.ReportRecord, error)
}

type exportRenderer interface {
	Export(ctx context.Context, query models.CatalogQuery, format service.ExportFormat) (*service.ExportResult, error)
}

// ReportHandler serves the report catalog HTTP surface.
type ReportHandler struct {
	uploads   uploadCoordinator
	deletes   deleteCoordinator
	catalog   catalogEngine
	exports   exportRenderer
	store     storage.ObjectStore
	signer    *storage.SignedURLSigner
	apiPrefix string
}

// NewReportHandler constructs the handler.
func NewReportHandler(uploads uploadCoordinator, deletes deleteCoordinator, catalog catalogEngine, exports exportRenderer, store storage.ObjectStore, signer *storage.SignedURLSigner, apiPrefix string) *ReportHandler {
	if apiPrefix == "" {
		apiPrefix = "/api/v1"
	}
	return &ReportHandler{
		uploads:   uploads,
		deletes:   deletes,
		catalog:   catalog,
		exports:   exports,
		store:     store,
		signer:    signer,
		apiPrefix: strings.TrimRight(apiPrefix, "/"),
	}
}

// Upload godoc
// @Summary Upload a health report
// @Tags Reports
// @Accept multipart/form-data
// @Produce json
// @Param patientId formData string true "Patient ID"
// @Param title formData string false "Title"
// @Param reportType formData string false "Report type"
// @Param doctor formData string false "Doctor / issued by"
// @Param reportDate formData string false "Report date (YYYY-MM-DD)"
// @Param tags formData string false "Comma separated tags"
// @Param description formData string false "Description"
// @Param file formData file true "Report file"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Upload(c *gin.Context) {
	var req dto.UploadReportRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid report payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file"))
		return
	}
	defer src.Close()

	reader, ok := src.(io.ReadSeeker)
	if !ok {
		buf, readErr := io.ReadAll(src)
		if readErr != nil {
			response.Error(c, appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file"))
			return
		}
		reader = bytes.NewReader(buf)
	}

	upload := service.ReportUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  reader,
	}
	record, err := h.uploads.Upload(c.Request.Context(), req, upload, nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, h.enrich(record))
}

// List godoc
// @Summary List the derived report catalog
// @Tags Reports
// @Produce json
// @Param search query string false "Search term (name, description, title, doctor, tags)"
// @Param type query string false "Report type filter"
// @Param sort query string false "newest or oldest" default(newest)
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	query := dto.CatalogQueryFromParams(c.Query("search"), c.Query("type"), c.Query("sort"))
	entries, err := h.catalog.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Get godoc
// @Summary Get one report with its object URLs
// @Tags Reports
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param reportId path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{patientId}/{reportId} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	record, err := h.catalog.Get(c.Request.Context(), c.Param("patientId"), c.Param("reportId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.enrich(record))
}

// BeginEdit godoc
// @Summary Mark a catalog entry as under edit
// @Tags Reports
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param reportId path string true "Report ID"
// @Success 204
// @Router /reports/{patientId}/{reportId}/edit [post]
func (h *ReportHandler) BeginEdit(c *gin.Context) {
	if err := h.catalog.BeginEdit(c.Param("patientId"), c.Param("reportId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CancelEdit godoc
// @Summary Discard the in-memory edit of a catalog entry
// @Tags Reports
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param reportId path string true "Report ID"
// @Success 204
// @Router /reports/{patientId}/{reportId}/edit/cancel [post]
func (h *ReportHandler) CancelEdit(c *gin.Context) {
	if err := h.catalog.CancelEdit(c.Param("patientId"), c.Param("reportId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Save godoc
// @Summary Save the mutable fields of a report
// @Tags Reports
// @Accept json
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param reportId path string true "Report ID"
// @Param payload body dto.SaveReportRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Router /reports/{patientId}/{reportId} [patch]
func (h *ReportHandler) Save(c *gin.Context) {
	var req dto.SaveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid save payload"))
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid field value"))
		return
	}
	patch := req.Patch()
	if patch.Empty() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "no fields to update"))
		return
	}
	record, err := h.catalog.Save(c.Request.Context(), c.Param("patientId"), c.Param("reportId"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, h.enrich(record))
}

// Delete godoc
// @Summary Delete a report (object store first, then record store)
// @Tags Reports
// @Produce json
// @Param patientId path string true "Patient ID"
// @Param reportId path string true "Report ID"
// @Success 204
// @Router /reports/{patientId}/{reportId} [delete]
func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.deletes.Delete(c.Request.Context(), c.Param("patientId"), c.Param("reportId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download a report file via signed token
// @Tags Reports
// @Produce octet-stream
// @Param patientId path string true "Patient ID"
// @Param reportId path string true "Report ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /reports/{patientId}/{reportId}/download [get]
func (h *ReportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	record, err := h.catalog.Get(c.Request.Context(), c.Param("patientId"), c.Param("reportId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	reportID, objectKey, _, err := h.signer.Parse(token, false)
	if err != nil || reportID != record.ReportID || objectKey != record.ObjectKey {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid or expired token"))
		return
	}
	file, err := h.store.Open(record.ObjectKey)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file"))
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.OriginalName))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), record.ContentType, file, nil)
}

// Export godoc
// @Summary Export the derived catalog as CSV or PDF
// @Tags Reports
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Param search query string false "Search term"
// @Param type query string false "Report type filter"
// @Param sort query string false "newest or oldest"
// @Success 200 {file} binary
// @Router /reports/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports disabled"))
		return
	}
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	query := dto.CatalogQueryFromParams(c.Query("search"), c.Query("type"), c.Query("sort"))
	result, err := h.exports.Export(c.Request.Context(), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.MimeType, result.Data)
}

func (h *ReportHandler) enrich(record *models.ReportRecord) dto.ReportResponse {
	resp := dto.ReportResponse{ReportRecord: *record}
	if h.store != nil {
		resp.ViewURL = h.store.PublicURL(record.ObjectKey)
	}
	if h.signer != nil {
		token, _, err := h.signer.Generate(record.ReportID, record.ObjectKey)
		if err == nil {
			resp.DownloadURL = fmt.Sprintf("%s/reports/%s/%s/download?token=%s",
				h.apiPrefix, record.PatientID, record.ReportID, token)
		}
	}
	return resp
}
