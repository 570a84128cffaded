package finance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/comanda-pos/comanda-pos/internal/events"
	"github.com/comanda-pos/comanda-pos/internal/orders"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

// Ledger categories.
const (
	CategorySales  = "vendas"
	CategoryFees   = "taxas"
	CategoryRefund = "estornos"
)

// Service synchronizes settled orders into the financial ledger.
type Service struct {
	repo   Repository
	bus    *events.Bus
	logger *slog.Logger
	ptBR   *message.Printer
}

// NewService constructs a finance service.
func NewService(repo Repository, bus *events.Bus, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		bus:    bus,
		logger: logger,
		ptBR:   message.NewPrinter(language.BrazilianPortuguese),
	}
}

// RegisterSubscriptions syncs an order as soon as its status reaches the
// settled terminal. The sweep job covers transitions this instance missed.
func (s *Service) RegisterSubscriptions(lookup func(ctx context.Context, id string) (*orders.Order, error)) {
	s.bus.Subscribe(events.OrderStatusChanged, func(ctx context.Context, evt events.Event) error {
		var data events.StatusChangedData
		if err := evt.Decode(&data); err != nil {
			return err
		}
		if !orders.Settled(orders.Status(data.To)) {
			return nil
		}
		o, err := lookup(ctx, data.OrderID)
		if err != nil {
			return fmt.Errorf("finance: load order %s: %w", data.OrderID, err)
		}
		return s.SyncOrder(ctx, o)
	})
}

// SyncOrder settles one order into the ledger. It is a no-op for orders
// not yet in the settled terminal and for orders already synced; calling
// it any number of times yields exactly one payment and one paired set of
// ledger records.
func (s *Service) SyncOrder(ctx context.Context, o *orders.Order) error {
	if o == nil || !orders.Settled(o.Status) {
		return nil
	}

	if _, err := s.repo.GetPaymentByOrder(ctx, o.ID); err == nil {
		return nil // already settled
	} else if !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	method := Method(o.PayMethod)
	if method == "" {
		method = MethodCash
	}
	fee := round2(o.Total * FeeRate(method))
	p := Payment{
		ID:        uuid.NewString(),
		OrderID:   o.ID,
		OrderSeq:  o.Seq,
		Amount:    o.Total,
		Method:    method,
		Fee:       fee,
		NetAmount: round2(o.Total - fee),
		Status:    PaymentCompleted,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.CreatePayment(ctx, p); err != nil {
		if errors.Is(err, ErrPaymentExists) {
			return nil // lost the race to another instance, same outcome
		}
		return err
	}

	if err := s.appendSettlementRecords(ctx, o, p); err != nil {
		return err
	}
	s.appendSamples(ctx, o)

	if err := s.bus.Publish(ctx, events.PaymentProcessed, events.PaymentProcessedData{
		OrderID: o.ID, PaymentID: p.ID, Amount: p.Amount, Method: string(p.Method),
	}); err != nil {
		s.logger.Warn("payment event not published",
			slog.String("order_id", o.ID), slog.Any("error", err))
	}
	return nil
}

// SyncAllSettled sweeps every settled order through SyncOrder. Safe to run
// on a timer and repeatedly; the per-order guard absorbs reruns.
func (s *Service) SyncAllSettled(ctx context.Context, settled []orders.Order) (int, error) {
	synced := 0
	for i := range settled {
		o := settled[i]
		if _, err := s.repo.GetPaymentByOrder(ctx, o.ID); err == nil {
			continue
		} else if !errors.Is(err, shared.ErrNotFound) {
			return synced, err
		}
		if err := s.SyncOrder(ctx, &o); err != nil {
			// keep sweeping, one bad order must not starve the rest
			s.logger.Error("sync settled order failed",
				slog.String("order_id", o.ID), slog.Any("error", err))
			continue
		}
		synced++
	}
	return synced, nil
}

// Refund flips the payment status and appends a compensating expense
// record. Ledger rows are never deleted.
func (s *Service) Refund(ctx context.Context, orderID string) (*Payment, error) {
	p, err := s.repo.GetPaymentByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.Status == PaymentRefunded {
		return p, nil
	}
	rec := FinancialRecord{
		ID:          uuid.NewString(),
		Kind:        KindExpense,
		Category:    CategoryRefund,
		Amount:      p.NetAmount,
		OrderID:     p.OrderID,
		PaymentID:   p.ID,
		Description: s.ptBR.Sprintf("estorno do pedido #%d, R$ %.2f", p.OrderSeq, p.NetAmount),
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.RefundPayment(ctx, p.ID, rec); err != nil {
		return nil, err
	}
	p.Status = PaymentRefunded
	return p, nil
}

// PaymentForOrder returns the payment settling an order, if any.
func (s *Service) PaymentForOrder(ctx context.Context, orderID string) (*Payment, error) {
	return s.repo.GetPaymentByOrder(ctx, orderID)
}

// ListPayments returns all payments, newest first.
func (s *Service) ListPayments(ctx context.Context) ([]Payment, error) {
	return s.repo.ListPayments(ctx)
}

// ListRecords returns the ledger, newest first.
func (s *Service) ListRecords(ctx context.Context) ([]FinancialRecord, error) {
	return s.repo.ListRecords(ctx)
}

func (s *Service) appendSettlementRecords(ctx context.Context, o *orders.Order, p Payment) error {
	now := time.Now().UTC()
	income := FinancialRecord{
		ID:          uuid.NewString(),
		Kind:        KindIncome,
		Category:    CategorySales,
		Amount:      p.NetAmount,
		OrderID:     o.ID,
		PaymentID:   p.ID,
		Description: s.ptBR.Sprintf("pedido #%d, receita liquida R$ %.2f", o.Seq, p.NetAmount),
		CreatedAt:   now,
	}
	if err := s.repo.InsertRecord(ctx, income); err != nil {
		return err
	}
	if p.Fee <= 0 {
		return nil
	}
	expense := FinancialRecord{
		ID:          uuid.NewString(),
		Kind:        KindExpense,
		Category:    CategoryFees,
		Amount:      p.Fee,
		OrderID:     o.ID,
		PaymentID:   p.ID,
		Description: s.ptBR.Sprintf("taxa %s do pedido #%d, R$ %.2f", p.Method, o.Seq, p.Fee),
		CreatedAt:   now,
	}
	return s.repo.InsertRecord(ctx, expense)
}

func (s *Service) appendSamples(ctx context.Context, o *orders.Order) {
	for _, line := range o.Items {
		sample := SalesSample{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			Product:   line.Product,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
			SoldAt:    time.Now().UTC(),
		}
		if err := s.repo.InsertSample(ctx, sample); err != nil {
			// analytics is best effort, never blocks settlement
			s.logger.Warn("sales sample not recorded",
				slog.String("order_id", o.ID), slog.Any("error", err))
		}
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
