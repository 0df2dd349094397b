package sender

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
)

// Email kinds.
const (
	TplBookingConfirmed      = "booking_confirmed"
	TplBookingPaidInFull     = "booking_paid_in_full"
	TplConsultationConfirmed = "consultation_confirmed"
	TplInvoiceReceipt        = "invoice_receipt"
	TplGiftCardRecipient     = "gift_card_recipient"
	TplGiftCardReceipt       = "gift_card_receipt"
	TplOrderPaid             = "order_paid"
	TplLabsWelcome           = "labs_welcome"
	TplLabsRenewal           = "labs_renewal"
	TplCourseAccess          = "course_access"
	TplReferralCode          = "referral_code"
	TplAdminPayment          = "admin_payment"
)

type templateConfig struct {
	file    string
	subject string
}

var templateConfigs = map[string]templateConfig{
	TplBookingConfirmed:      {file: "templates/booking_confirmed.html", subject: "Your appointment is confirmed"},
	TplBookingPaidInFull:     {file: "templates/booking_paid_in_full.html", subject: "Payment received, you're all paid up"},
	TplConsultationConfirmed: {file: "templates/consultation_confirmed.html", subject: "Your consultation is booked"},
	TplInvoiceReceipt:        {file: "templates/invoice_receipt.html", subject: "Invoice paid, thank you"},
	TplGiftCardRecipient:     {file: "templates/gift_card_recipient.html", subject: "You've received a gift card"},
	TplGiftCardReceipt:       {file: "templates/gift_card_receipt.html", subject: "Your gift card purchase"},
	TplOrderPaid:             {file: "templates/order_paid.html", subject: "Order confirmed"},
	TplLabsWelcome:           {file: "templates/labs_welcome.html", subject: "Welcome to Labs"},
	TplLabsRenewal:           {file: "templates/labs_renewal.html", subject: "Your Labs membership was renewed"},
	TplCourseAccess:          {file: "templates/course_access.html", subject: "Your course access"},
	TplReferralCode:          {file: "templates/referral_code.html", subject: "Your referral code"},
	TplAdminPayment:          {file: "templates/admin_payment.html", subject: "Payment received"},
}

//go:embed templates/*.html
var templateFS embed.FS

// Templates renders the embedded email bodies.
type Templates struct {
	parsed map[string]*template.Template
}

func LoadTemplates() (*Templates, error) {
	funcs := template.FuncMap{"money": FormatMinor}
	t := &Templates{parsed: make(map[string]*template.Template, len(templateConfigs))}
	for name, cfg := range templateConfigs {
		tmpl, err := template.New(strings.TrimPrefix(cfg.file, "templates/")).Funcs(funcs).ParseFS(templateFS, cfg.file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		t.parsed[name] = tmpl
	}
	return t, nil
}

// Render returns the subject and HTML body for kind.
func (t *Templates) Render(kind string, data any) (string, string, error) {
	tmpl, ok := t.parsed[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", kind)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", kind, err)
	}
	return templateConfigs[kind].subject, buf.String(), nil
}

// FormatMinor renders an amount in minor units, e.g. 250050 KES -> "KES 2,500.50".
func FormatMinor(amount int64, currency string) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	whole := fmt.Sprintf("%d", amount/100)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(r)
	}
	out := fmt.Sprintf("%s.%02d", grouped.String(), amount%100)
	if neg {
		out = "-" + out
	}
	if currency == "" {
		return out
	}
	return currency + " " + out
}
