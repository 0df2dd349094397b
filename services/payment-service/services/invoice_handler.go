package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

// InvoiceHandler settles an issued invoice. Invoices have no pending phase.
type InvoiceHandler struct {
	f *Fulfillment
}

func (h *InvoiceHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)
	now := f.now()

	before, after, found, err := f.stores.Invoices.Update(ctx, ev.NaturalKey, func(inv *models.Invoice) (bool, error) {
		var added bool
		inv.Payments, added = inv.Payments.Record(ev.Entry(models.EntryPayment))
		if !added {
			return false, nil
		}
		inv.Settle(now)
		return true, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("update invoice: %w", err)
	}
	if !found {
		log.Warn("No invoice found for payment")
		return Result{Outcome: OutcomeSkipped}, nil
	}
	if len(after.Payments) == len(before.Payments) {
		log.Info("Payment already recorded on invoice")
		return Result{Outcome: OutcomeReplayed}, nil
	}

	log.Info("Invoice payment recorded",
		zap.String("status", after.Status),
		zap.Int64("paid", after.Payments.Total()),
		zap.Int64("total", after.TotalMinor),
	)
	res := Result{Outcome: OutcomeUpdated}
	if before.Status != models.InvoiceStatusPaid && after.Status == models.InvoiceStatusPaid {
		res.FailedSteps = f.orch.Run(ctx, ev,
			f.emailStep(StepReceipt, after.ClientEmail, sender.TplInvoiceReceipt, map[string]any{
				"Name":      after.ClientName,
				"Number":    firstNonEmpty(after.Number, after.NaturalKey),
				"Total":     after.TotalMinor,
				"Currency":  firstNonEmpty(after.Currency, ev.Currency),
				"Reference": ev.Reference,
			}),
			f.clientStep(Contact{Email: after.ClientEmail, Name: after.ClientName}, history("invoice", ev, "invoice "+after.Number)),
			f.adminStep(ev, after.ClientEmail, "invoice paid"),
		)
	}
	return res, nil
}
