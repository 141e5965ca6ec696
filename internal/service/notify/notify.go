package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/starland/ledger/internal/domain/models"
	"github.com/starland/ledger/internal/service/dashboard"
	"github.com/starland/ledger/pkg/clients/whatsapp"
)

// WeekDays is the length of the summarised period, today included.
const WeekDays = 7

// ErrNoRecipient is returned when no report recipient is configured.
var ErrNoRecipient = errors.New("no report recipient configured")

// Summarizer computes dashboard figures for a period.
type Summarizer interface {
	Summarize(ctx context.Context, f dashboard.Filter) (models.Summary, error)
}

// Service composes and delivers the weekly business summary.
type Service struct {
	summaries Summarizer
	sender    whatsapp.Sender
	recipient string
	loc       *time.Location
	logger    *zap.Logger
	printer   *message.Printer
	now       func() time.Time
}

// NewService wires the weekly summary sender.
func NewService(summaries Summarizer, sender whatsapp.Sender, recipient string, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		summaries: summaries,
		sender:    sender,
		recipient: recipient,
		loc:       loc,
		logger:    logger.Named("notify"),
		printer:   message.NewPrinter(language.English),
		now:       time.Now,
	}
}

// Weekly builds the summary text for the last WeekDays days.
func (s *Service) Weekly(ctx context.Context) (string, error) {
	today := s.now().In(s.loc)
	from := today.AddDate(0, 0, -(WeekDays - 1)).Format(models.DateLayout)
	to := today.Format(models.DateLayout)

	sum, err := s.summaries.Summarize(ctx, dashboard.Filter{From: from, To: to})
	if err != nil {
		return "", fmt.Errorf("weekly summary: %w", err)
	}
	return s.compose(sum), nil
}

// SendWeekly delivers the weekly summary to the configured recipient.
func (s *Service) SendWeekly(ctx context.Context) error {
	if s.recipient == "" {
		return ErrNoRecipient
	}
	body, err := s.Weekly(ctx)
	if err != nil {
		return err
	}
	ids, err := s.sender.SendText(ctx, s.recipient, body)
	if err != nil {
		return fmt.Errorf("deliver weekly summary: %w", err)
	}
	s.logger.Info("weekly summary sent", zap.String("recipient", s.recipient), zap.Int("messages", len(ids)))
	return nil
}

const maxDebtors = 5

func (s *Service) compose(sum models.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Starland Water Company*\nWeekly summary %s to %s\n\n", sum.From, sum.To)

	b.WriteString(s.printer.Sprintf("Sales: %d (avg %s)\n", sum.SalesCount, s.amount(sum.AverageSale)))
	b.WriteString("Revenue: " + s.amount(sum.TotalRevenue) + "\n")
	b.WriteString("Collected: " + s.amount(sum.TotalPaid) + "\n")
	b.WriteString("Outstanding: " + s.amount(sum.OutstandingBalance) + "\n")
	b.WriteString("Expenses: " + s.amount(sum.TotalExpenses) + "\n")
	b.WriteString("Net income: " + s.amount(sum.NetIncome) + "\n\n")

	b.WriteString(s.printer.Sprintf("Diesel: %s (%.2f L)\n", s.amount(sum.DieselCost), sum.DieselLiters))
	b.WriteString("Repairs: " + s.amount(sum.RepairCost) + "\n")
	b.WriteString("Damages: " + s.amount(sum.DamageValue) + "\n")
	b.WriteString(s.printer.Sprintf("Production: %v units\n", sum.ProductionQuantity))

	if len(sum.Debtors) > 0 {
		b.WriteString("\nTop debtors:\n")
		for i, d := range sum.Debtors {
			if i == maxDebtors {
				break
			}
			fmt.Fprintf(&b, "%d. %s %s\n", i+1, d.CustomerName, s.amount(d.Outstanding))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) amount(v float64) string {
	return s.printer.Sprintf("KES %.2f", v)
}
