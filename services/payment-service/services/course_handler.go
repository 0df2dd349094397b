package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/sender"
)

// CoursePurchaseHandler grants course access with a one-time access code.
type CoursePurchaseHandler struct {
	f *Fulfillment
}

func (h *CoursePurchaseHandler) Handle(ctx context.Context, ev models.PaymentEvent) (Result, error) {
	f := h.f
	log := f.log(ctx, ev)

	purchase := models.CoursePurchase{
		NaturalKey:  ev.NaturalKey,
		CourseID:    ev.Meta("course_id"),
		CourseTitle: firstNonEmpty(ev.Meta("course_title"), ev.Meta("course_id")),
		Name:        ev.Meta("name"),
		Email:       models.NormalizeEmail(firstNonEmpty(ev.Meta("email"), ev.CustomerEmail)),
		AccessCode:  "CRS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10]),
		Reference:   ev.Reference,
		Currency:    ev.Currency,
		AmountMinor: ev.AmountMinor,
		PurchasedAt: f.now().UTC(),
	}

	stored, inserted, err := f.stores.CoursePurchases.CreateIfAbsent(ctx, purchase)
	if err != nil {
		return Result{}, fmt.Errorf("create course purchase: %w", err)
	}
	if !inserted {
		log.Info("Course purchase already recorded")
		return Result{Outcome: OutcomeReplayed}, nil
	}
	log.Info("Course purchase recorded")

	return Result{Outcome: OutcomeConfirmed, FailedSteps: f.orch.Run(ctx, ev,
		f.emailStep(StepEmail, stored.Email, sender.TplCourseAccess, map[string]any{
			"Name":        firstNonEmpty(stored.Name, stored.Email),
			"CourseTitle": stored.CourseTitle,
			"AccessCode":  stored.AccessCode,
		}),
		f.clientStep(Contact{Email: stored.Email, Name: stored.Name}, history("course", ev, stored.CourseTitle)),
		f.adminStep(ev, stored.Email, "course "+stored.CourseTitle),
	)}, nil
}
