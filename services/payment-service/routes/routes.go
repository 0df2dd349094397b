package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cate-nduta/Lash-Business-sub002/services/common/auth"
	apperrors "github.com/cate-nduta/Lash-Business-sub002/services/common/errors"
	commonmw "github.com/cate-nduta/Lash-Business-sub002/services/common/middleware"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/controllers"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/middleware"
)

// Options tunes the public routes.
type Options struct {
	CallbackPerMinute int
	CallbackBurst     int
}

func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, verifier *auth.Verifier, opts Options) {
	if opts.CallbackPerMinute <= 0 {
		opts.CallbackPerMinute = 120
	}
	if opts.CallbackBurst <= 0 {
		opts.CallbackBurst = 20
	}

	// Gateway webhook (signature checked, no auth). Never throttled: anything
	// but 200 after a valid signature makes the gateway redeliver.
	r.POST("/webhook", pc.Webhook)

	// Storefront callback after checkout
	r.POST("/payments/verify/:reference", commonmw.RateLimitMiddleware(opts.CallbackPerMinute, opts.CallbackBurst), pc.VerifyPayment)

	admin := r.Group("/admin", middleware.AdminAuth(verifier), apperrors.ErrorMiddleware())
	admin.GET("/side-effect-failures", pc.ListFailures)
}
