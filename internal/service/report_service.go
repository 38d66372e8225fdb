package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nurpe/marketplace-api/internal/config"
	"github.com/nurpe/marketplace-api/internal/model"
)

type ReportReader interface {
	TopProfessions(ctx context.Context, from, to time.Time, limit int) ([]model.ProfessionEarnings, error)
	TopClients(ctx context.Context, from, to time.Time, limit int) ([]model.ClientPayments, error)
}

type ExcelGenerator interface {
	Generate(report model.EarningsReport) ([]byte, error)
}

type ReportService struct {
	repo         ReportReader
	excel        ExcelGenerator
	defaultLimit int
}

type ReportInput struct {
	PeriodStart time.Time
	PeriodEnd   time.Time
	Limit       int
}

type ExportResult struct {
	FileName string
	Content  []byte
}

func NewReportService(repo ReportReader, excel ExcelGenerator, cfg config.ReportsConfig) *ReportService {
	return &ReportService{
		repo:         repo,
		excel:        excel,
		defaultLimit: cfg.DefaultClientLimit,
	}
}

func (s *ReportService) BestProfession(ctx context.Context, input ReportInput) (*model.ProfessionEarnings, error) {
	from, to, err := period(input)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.TopProfessions(ctx, from, to, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, newError(ErrNotFound, MsgNoPaidJobsInRange)
	}
	return &rows[0], nil
}

func (s *ReportService) BestClients(ctx context.Context, input ReportInput) ([]model.ClientPayments, error) {
	from, to, err := period(input)
	if err != nil {
		return nil, err
	}
	limit, err := s.limit(input.Limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.TopClients(ctx, from, to, limit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, newError(ErrNotFound, MsgNoPaidJobsInRange)
	}
	return rows, nil
}

// Export renders either report as a workbook.
func (s *ReportService) Export(ctx context.Context, kind model.ReportKind, input ReportInput) (*ExportResult, error) {
	report := model.EarningsReport{
		Kind:        kind,
		PeriodStart: dateOnly(input.PeriodStart),
		PeriodEnd:   dateOnly(input.PeriodEnd),
	}

	switch kind {
	case model.ReportKindBestProfession:
		from, to, err := period(input)
		if err != nil {
			return nil, err
		}
		limit, err := s.limit(input.Limit)
		if err != nil {
			return nil, err
		}
		rows, err := s.repo.TopProfessions(ctx, from, to, limit)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, newError(ErrNotFound, MsgNoPaidJobsInRange)
		}
		report.Professions = rows
	case model.ReportKindBestClients:
		rows, err := s.BestClients(ctx, input)
		if err != nil {
			return nil, err
		}
		report.Clients = rows
	default:
		return nil, newError(ErrInvalidInput, "Invalid report kind")
	}

	content, err := s.excel.Generate(report)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		FileName: buildFileName(report),
		Content:  content,
	}, nil
}

func (s *ReportService) limit(requested int) (int, error) {
	if requested == 0 {
		return s.defaultLimit, nil
	}
	if requested < 1 {
		return 0, newError(ErrInvalidInput, "limit must not be less than 1")
	}
	return requested, nil
}

// period converts an inclusive day range into [from, to) bounds.
func period(input ReportInput) (time.Time, time.Time, error) {
	if input.PeriodStart.IsZero() || input.PeriodEnd.IsZero() {
		return time.Time{}, time.Time{}, newError(ErrInvalidInput, "start and end dates are required")
	}
	start := dateOnly(input.PeriodStart)
	end := dateOnly(input.PeriodEnd)
	if start.After(end) {
		return time.Time{}, time.Time{}, newError(ErrInvalidInput, "start must be before or equal to end")
	}
	return start, end.Add(24 * time.Hour), nil
}

func buildFileName(report model.EarningsReport) string {
	kind := sanitizeFileName(strings.ToLower(string(report.Kind)))
	p := fmt.Sprintf("%s-%s", report.PeriodStart.Format("20060102"), report.PeriodEnd.Format("20060102"))
	return fmt.Sprintf("%s-%s.xlsx", kind, p)
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeFileName(input string) string {
	result := make([]rune, 0, len(input))
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z':
			result = append(result, r)
		case r >= 'A' && r <= 'Z':
			result = append(result, r)
		case r >= '0' && r <= '9':
			result = append(result, r)
		case r == '-', r == '_':
			result = append(result, r)
		default:
			result = append(result, '-')
		}
	}
	return strings.Trim(string(result), "-")
}
