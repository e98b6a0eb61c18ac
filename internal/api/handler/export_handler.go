package handler

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/dto"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/internal/service"
	"github.com/Diggleda/PeptideWebsitewithkinesiology-sub003/pkg/response"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportHandler spreadsheet export HTTP handler
type ExportHandler struct {
	exportSvc service.ExportService
}

// NewExportHandler creates an ExportHandler
func NewExportHandler(exportSvc service.ExportService) *ExportHandler {
	return &ExportHandler{exportSvc: exportSvc}
}

// ExportSalesByRep sales-by-rep report as xlsx; same filters as /sales-by-rep
// GET /api/v1/sales-by-rep/export
func (h *ExportHandler) ExportSalesByRep(c *gin.Context) {
	var q dto.SalesByRepQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 23008, service.ErrInvalidPeriod.Error())
		return
	}

	buf, filename, err := h.exportSvc.ExportSalesByRep(c.Request.Context(), &q)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeSpreadsheet(c, buf, filename)
}

// ExportLedgerStatement a doctor's credit statement as xlsx
// GET /api/v1/credits/:doctorId/export
func (h *ExportHandler) ExportLedgerStatement(c *gin.Context) {
	doctorID, ok := MustGetUUIDParam(c, "doctorId")
	if !ok {
		return
	}
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	buf, filename, err := h.exportSvc.ExportLedgerStatement(c.Request.Context(), doctorID, actor)
	if err != nil {
		h.handleExportError(c, err)
		return
	}

	writeSpreadsheet(c, buf, filename)
}

func writeSpreadsheet(c *gin.Context, buf *bytes.Buffer, filename string) {
	encodedFilename := url.QueryEscape(filename)
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+encodedFilename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *ExportHandler) handleExportError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidTimeZone):
		response.BadRequest(c, 23007, err.Error())
	case errors.Is(err, service.ErrInvalidPeriod):
		response.BadRequest(c, 23008, err.Error())
	case errors.Is(err, service.ErrLedgerForbidden):
		response.Forbidden(c, 22008, err.Error())
	case errors.Is(err, service.ErrExportGenerateFail):
		response.InternalError(c)
	default:
		response.FromError(c, err)
	}
}
