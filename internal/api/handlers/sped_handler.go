// internal/api/handlers/sped_handler.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"sped-service/internal/api/responses"
	"sped-service/internal/core/nfe"
	"sped-service/internal/core/pipeline"
	"sped-service/internal/core/reconciliation"
	"sped-service/internal/core/sped"
	"sped-service/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	xmlFilesField  = "xmlFiles"
	spedFileField  = "spedFile"
	contentTypeTXT = "text/plain; charset=iso-8859-1"
	contentTypeCSV = "text/csv; charset=windows-1252"
	contentTypeXLS = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SpedHandler lida com as requisições de geração e conferência de arquivos SPED.
type SpedHandler struct {
	service pipeline.Service
}

// NewSpedHandler cria um novo handler de SPED.
func NewSpedHandler(service pipeline.Service) *SpedHandler {
	return &SpedHandler{service: service}
}

// HandleGenerate processa as notas e devolve o arquivo SPED e a conciliação em JSON.
func (h *SpedHandler) HandleGenerate(c *gin.Context) {
	result, _, ok := h.process(c)
	if !ok {
		return
	}
	responses.Success(c, gin.H{
		"runId":          result.RunID,
		"records":        result.Records,
		"reconciliation": reconciliation.Build(result.Records),
		"spedFile":       result.Text,
	}, fmt.Sprintf("Arquivo SPED gerado a partir de %d nota(s)", len(result.Records)))
}

// HandleDownload devolve o arquivo SPED codificado em ISO-8859-1.
func (h *SpedHandler) HandleDownload(c *gin.Context) {
	result, cfg, ok := h.process(c)
	if !ok {
		return
	}
	data, err := sped.EncodeLatin1(result.Text)
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Erro ao codificar o arquivo SPED", err.Error())
		return
	}
	responses.Attachment(c, outputName("SPED", cfg, "txt"), contentTypeTXT, data)
}

// HandleReconciliation devolve o relatório de conciliação em XLSX ou CSV.
func (h *SpedHandler) HandleReconciliation(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", c.DefaultPostForm("format", "xlsx")))
	if format != "xlsx" && format != "csv" {
		responses.Error(c, http.StatusBadRequest, fmt.Sprintf("Formato de relatório não suportado: %s", format))
		return
	}

	result, cfg, ok := h.process(c)
	if !ok {
		return
	}

	rows := reconciliation.Build(result.Records)
	var (
		data        []byte
		err         error
		contentType string
	)
	if format == "csv" {
		data, err = reconciliation.CSV(rows)
		contentType = contentTypeCSV
	} else {
		data, err = reconciliation.XLSX(rows)
		contentType = contentTypeXLS
	}
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Erro ao gerar o relatório de conciliação", err.Error())
		return
	}
	responses.Attachment(c, outputName("Conciliacao", cfg, format), contentType, data)
}

// HandleVerify confere as contagens de um arquivo SPED enviado.
func (h *SpedHandler) HandleVerify(c *gin.Context) {
	fileHeader, err := c.FormFile(spedFileField)
	if err != nil {
		responses.Error(c, badRequestStatus(err), "Arquivo SPED (.txt) não encontrado ou inválido")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		responses.Error(c, http.StatusInternalServerError, "Não foi possível abrir o arquivo SPED")
		return
	}
	defer f.Close()

	report, err := sped.Verify(f)
	if err != nil && !errors.Is(err, sped.ErrCountMismatch) {
		responses.Error(c, http.StatusBadRequest, "Não foi possível ler o arquivo SPED", err.Error())
		return
	}

	message := "Contagens de registros conferem"
	if !report.Valid {
		message = "Arquivo SPED com contagens divergentes"
	}
	responses.Success(c, report, message)
}

// process binds the run parameters and the uploaded XML files and runs the
// pipeline. On failure it has already written the error response.
func (h *SpedHandler) process(c *gin.Context) (*domain.ProcessResult, domain.RunConfig, bool) {
	var params domain.RunParams
	if err := c.ShouldBind(&params); err != nil {
		responses.Error(c, badRequestStatus(err), "Requisição inválida", err.Error())
		return nil, domain.RunConfig{}, false
	}

	cfg, err := params.RunConfig()
	if err != nil {
		responses.Error(c, http.StatusBadRequest, "Parâmetros inválidos", strings.Split(err.Error(), "\n")...)
		return nil, domain.RunConfig{}, false
	}

	files, err := xmlFiles(c)
	if err != nil {
		responses.Error(c, badRequestStatus(err), err.Error())
		return nil, domain.RunConfig{}, false
	}

	result, err := h.service.ProcessAndGenerate(c.Request.Context(), files, cfg)
	if err != nil {
		status, message := processingError(err)
		responses.Error(c, status, message, err.Error())
		return nil, domain.RunConfig{}, false
	}
	return result, cfg, true
}

func xmlFiles(c *gin.Context) ([]domain.RawFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	headers := form.File[xmlFilesField]
	if len(headers) == 0 {
		return nil, pipeline.ErrNoFiles
	}

	files := make([]domain.RawFile, 0, len(headers))
	for _, fh := range headers {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext != ".xml" {
			return nil, fmt.Errorf("extensão de arquivo não suportada: %s (%s)", ext, fh.Filename)
		}
		files = append(files, rawFile(fh))
	}
	return files, nil
}

func rawFile(fh *multipart.FileHeader) domain.RawFile {
	return domain.RawFile{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			return f, nil
		},
	}
}

func processingError(err error) (int, string) {
	switch {
	case errors.Is(err, nfe.ErrMalformedDocument), errors.Is(err, nfe.ErrMissingRequiredElement):
		return http.StatusUnprocessableEntity, "Documento NF-e inválido"
	case errors.Is(err, pipeline.ErrNoFiles):
		return http.StatusBadRequest, "Nenhum arquivo XML foi enviado"
	default:
		return http.StatusInternalServerError, "Erro ao processar os arquivos"
	}
}

func badRequestStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// outputName builds names like SPED_11222333000181_032024.txt.
func outputName(prefix string, cfg domain.RunConfig, ext string) string {
	return fmt.Sprintf("%s_%s_%02d%04d.%s", prefix, domain.OnlyDigits(cfg.TaxID), int(cfg.Period.Month), cfg.Period.Year, ext)
}
