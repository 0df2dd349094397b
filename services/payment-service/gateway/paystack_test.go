package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystack_VerifySignature(t *testing.T) {
	p := NewPaystack("sk_test_secret", "")
	body := []byte(`{"event":"charge.success","data":{"reference":"ref-1"}}`)
	header := sign("sk_test_secret", body)

	assert.True(t, p.VerifySignature(body, header))

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	assert.False(t, p.VerifySignature(tampered, header))

	assert.False(t, p.VerifySignature(body, ""))
	assert.False(t, p.VerifySignature(body, "not-hex"))
	assert.False(t, p.VerifySignature(body, header[:64]))
	assert.False(t, p.VerifySignature(body, sign("other", body)))
}

func TestPaystack_VerifySignatureWithoutSecret(t *testing.T) {
	p := NewPaystack("", "")
	body := []byte(`{}`)
	assert.False(t, p.VerifySignature(body, sign("", body)))
}

func TestPaystack_ParseEnvelope(t *testing.T) {
	p := NewPaystack("k", "")

	env, err := p.ParseEnvelope([]byte(`{"event":"charge.success","data":{"reference":" ref-9 "}}`))
	require.NoError(t, err)
	assert.Equal(t, "ref-9", env.Reference)
	assert.True(t, env.Actionable)

	env, err = p.ParseEnvelope([]byte(`{"event":"transfer.success","data":{"reference":"x"}}`))
	require.NoError(t, err)
	assert.False(t, env.Actionable)

	_, err = p.ParseEnvelope([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestPaystack_VerifyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"reference": "ref-1",
				"status": "success",
				"amount": 250000,
				"currency": "kes",
				"paid_at": "2026-03-01T10:00:00.000Z",
				"customer": {"email": "jane@example.com"},
				"metadata": "{\"payment_type\":\"booking\",\"natural_key\":\"booking-1\"}"
			}
		}`))
	}))
	defer srv.Close()

	p := NewPaystack("sk_test", srv.URL)
	tx, err := p.VerifyTransaction(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.True(t, tx.Succeeded())
	assert.Equal(t, int64(250000), tx.AmountMinor)
	assert.Equal(t, "KES", tx.Currency)
	assert.Equal(t, 2026, tx.PaidAt.Year())

	ev := tx.Event(PaystackEventChargeSuccess)
	assert.Equal(t, models.PaymentTypeBooking, ev.PaymentType)
	assert.Equal(t, "booking-1", ev.NaturalKey)
	assert.Equal(t, "jane@example.com", ev.CustomerEmail)
}

func TestPaystack_VerifyTransactionNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer srv.Close()

	_, err := NewPaystack("sk_test", srv.URL).VerifyTransaction(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestPaystack_VerifyTransactionFailedCharge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"data":{"reference":"ref-2","status":"failed","amount":100,"metadata":{"payment_type":"invoice"}}}`))
	}))
	defer srv.Close()

	tx, err := NewPaystack("sk_test", srv.URL).VerifyTransaction(context.Background(), "ref-2")
	require.NoError(t, err)
	assert.False(t, tx.Succeeded())
	assert.Equal(t, "invoice", tx.Metadata["payment_type"])
}

func TestPaystack_VerifyTransactionReferenceMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"data":{"reference":"ref-other","status":"success","amount":100}}`))
	}))
	defer srv.Close()

	tx, err := NewPaystack("sk_test", srv.URL).VerifyTransaction(context.Background(), "ref-4")
	assert.ErrorIs(t, err, ErrReferenceMismatch)
	assert.Nil(t, tx)
}

func TestPaystack_VerifyTransactionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewPaystack("sk_test", srv.URL).VerifyTransaction(context.Background(), "ref-3")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransactionNotFound)
}

func TestDecodeMetadata(t *testing.T) {
	assert.Equal(t, "x", decodeMetadata([]byte(`{"a":"x"}`))["a"])
	assert.Equal(t, "x", decodeMetadata([]byte(`"{\"a\":\"x\"}"`))["a"])
	assert.Empty(t, decodeMetadata([]byte(`""`)))
	assert.Empty(t, decodeMetadata(nil))
	assert.Empty(t, decodeMetadata([]byte(`12`)))
}
