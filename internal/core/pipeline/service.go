// internal/core/pipeline/service.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"sped-service/internal/core/fiscal"
	"sped-service/internal/core/nfe"
	"sped-service/internal/core/sped"
	"sped-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNoFiles is returned when the batch is empty.
var ErrNoFiles = errors.New("nenhum arquivo XML foi enviado")

const defaultReadConcurrency = 8

// Service defines the interface of the NF-e to SPED pipeline.
type Service interface {
	ProcessAndGenerate(ctx context.Context, files []domain.RawFile, cfg domain.RunConfig) (*domain.ProcessResult, error)
}

type service struct {
	logger          *zap.Logger
	readConcurrency int
}

// NewService creates the pipeline. A nil logger disables logging.
func NewService(logger *zap.Logger, readConcurrency int) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if readConcurrency <= 0 {
		readConcurrency = defaultReadConcurrency
	}
	return &service{logger: logger, readConcurrency: readConcurrency}
}

// ProcessAndGenerate reads every file, parses and adjusts each document and
// serializes all of them into a single ledger. The first failure aborts the
// whole batch and no partial ledger is produced.
func (s *service) ProcessAndGenerate(ctx context.Context, files []domain.RawFile, cfg domain.RunConfig) (*domain.ProcessResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	runID := uuid.NewString()
	log := s.logger.With(zap.String("run_id", runID))
	log.Info("processing batch",
		zap.Int("files", len(files)),
		zap.String("period", cfg.Period.String()),
		zap.String("sped_type", string(cfg.ReportType)),
	)

	contents, err := s.readAll(ctx, files)
	if err != nil {
		log.Error("failed to read batch", zap.Error(err))
		return nil, err
	}

	records := make([]domain.InvoiceRecord, 0, len(files))
	for i, raw := range contents {
		record, err := nfe.Parse(raw)
		if err != nil {
			log.Warn("invalid document", zap.String("file", files[i].Name), zap.Error(err))
			return nil, fmt.Errorf("arquivo %s: %w", files[i].Name, err)
		}
		record.Source = files[i].Name
		records = append(records, fiscal.Adjust(record))
	}

	text := sped.Generate(records, cfg)
	report, err := sped.VerifyText(text)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if report != nil {
			fields = append(fields, zap.Any("checks", report.Checks))
		}
		log.Error("generated ledger failed verification", fields...)
		return nil, fmt.Errorf("falha na verificação do arquivo gerado: %w", err)
	}

	log.Info("batch processed",
		zap.Int("records", len(records)),
		zap.Int("included", len(report.Documents)),
		zap.Int("bytes", len(text)),
	)
	return &domain.ProcessResult{RunID: runID, Records: records, Text: text}, nil
}

// readAll loads the files concurrently. Results keep the input order.
func (s *service) readAll(ctx context.Context, files []domain.RawFile) ([][]byte, error) {
	contents := make([][]byte, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.readConcurrency)
	for i, file := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := readFile(file)
			if err != nil {
				return fmt.Errorf("arquivo %s: %w", file.Name, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return contents, nil
}

func readFile(file domain.RawFile) ([]byte, error) {
	if file.Open == nil {
		return nil, errors.New("arquivo sem conteúdo")
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("não foi possível abrir o arquivo: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler dados do XML: %w", err)
	}
	return data, nil
}
