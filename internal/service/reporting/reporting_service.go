package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/records"
)

var (
	// ErrUnknownFormat is returned for unsupported output formats.
	ErrUnknownFormat = errors.New("unknown report format")
	// ErrNoArchive is returned when archiving without any archive configured.
	ErrNoArchive = errors.New("no report archive configured")
)

// Document is a rendered report ready for download or upload.
type Document struct {
	Filename    string
	ContentType string
	Body        []byte
	Table       Table
}

// Service builds and renders reports from the record modules.
type Service struct {
	records   *records.Set
	archivers []Archiver
	location  *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires the reporting service. Reports are dated in loc.
func NewService(set *records.Set, loc *time.Location, logger *zap.Logger, archivers ...Archiver) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{records: set, archivers: archivers, location: loc, logger: logger, now: time.Now}
}

func (s *Service) today() time.Time { return s.now().In(s.location) }

// Build materialises report id. Unknown ids produce the default sales report.
func (s *Service) Build(ctx context.Context, id string) (Table, error) {
	def := Lookup(id)
	rows, err := def.load(ctx, s.records, def.window(s.today()))
	if err != nil {
		return Table{}, fmt.Errorf("build report %s: %w", def.ID, err)
	}
	return Table{ID: def.ID, Title: def.Title, Headers: def.Headers, Rows: rows}, nil
}

// Render builds report id and encodes it in format.
func (s *Service) Render(ctx context.Context, id string, format Format) (Document, error) {
	def := Lookup(id)
	table, err := s.Build(ctx, id)
	if err != nil {
		return Document{}, err
	}

	today := s.today()
	body, err := encode(table, format, today.Format("2006-01-02 15:04"))
	if err != nil {
		return Document{}, fmt.Errorf("render report %s: %w", def.ID, err)
	}

	s.logger.Info("report rendered",
		zap.String("report", def.ID),
		zap.String("format", string(format)),
		zap.Int("rows", len(table.Rows)))

	return Document{
		Filename:    Filename(def.Prefix, format, today),
		ContentType: format.ContentType(),
		Body:        body,
		Table:       table,
	}, nil
}

// Archive renders report id and hands it to every configured archive.
func (s *Service) Archive(ctx context.Context, id string, format Format) ([]string, error) {
	if len(s.archivers) == 0 {
		return nil, ErrNoArchive
	}

	doc, err := s.Render(ctx, id, format)
	if err != nil {
		return nil, err
	}

	var (
		locations []string
		errs      []error
	)
	for _, a := range s.archivers {
		loc, err := a.Archive(ctx, doc)
		if err != nil {
			s.logger.Error("report archive failed", zap.String("report", doc.Table.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		locations = append(locations, loc)
	}
	return locations, errors.Join(errs...)
}

// AuditDocument renders audit entries for download.
func (s *Service) AuditDocument(entries []models.AuditEntry) Document {
	return Document{
		Filename:    "audit-logs-" + s.today().Format(models.DateLayout) + ".csv",
		ContentType: FormatCSV.ContentType(),
		Body:        EncodeAuditCSV(entries),
	}
}

// Filename is the download name of a report rendered on day.
func Filename(prefix string, format Format, day time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, day.Format(models.DateLayout), format)
}
