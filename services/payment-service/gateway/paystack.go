package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	PaystackDefaultBaseURL     = "https://api.paystack.co"
	PaystackSignatureHeader    = "x-paystack-signature"
	PaystackEventChargeSuccess = "charge.success"
)

// Paystack talks to a Paystack-compatible API: HMAC-SHA512 webhook signatures
// keyed with the secret key and GET /transaction/verify/:reference.
type Paystack struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewPaystack(secretKey, baseURL string) *Paystack {
	if baseURL == "" {
		baseURL = PaystackDefaultBaseURL
	}
	return &Paystack{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (p *Paystack) Name() string            { return "paystack" }
func (p *Paystack) SignatureHeader() string { return PaystackSignatureHeader }

func (p *Paystack) VerifySignature(rawBody []byte, header string) bool {
	header = strings.TrimSpace(header)
	if p.secretKey == "" || header == "" {
		return false
	}
	given, err := hex.DecodeString(header)
	if err != nil || len(given) != sha512.Size {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), given)
}

type paystackEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

func (p *Paystack) ParseEnvelope(rawBody []byte) (Envelope, error) {
	var env paystackEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return Envelope{
		EventType:  env.Event,
		Reference:  strings.TrimSpace(env.Data.Reference),
		Actionable: env.Event == PaystackEventChargeSuccess,
	}, nil
}

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		PaidAt    string          `json:"paid_at"`
		Metadata  json.RawMessage `json:"metadata"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

func (p *Paystack) VerifyTransaction(ctx context.Context, reference string) (*VerifiedTransaction, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", p.baseURL, url.PathEscape(reference))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("paystack verify request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read paystack response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("paystack verify returned status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var out paystackVerifyResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode paystack response: %w", err)
	}
	if !out.Status {
		return nil, fmt.Errorf("paystack verify failed: %s", out.Message)
	}

	tx := &VerifiedTransaction{
		Reference:     out.Data.Reference,
		Status:        strings.ToLower(out.Data.Status),
		AmountMinor:   out.Data.Amount,
		Currency:      strings.ToUpper(out.Data.Currency),
		CustomerEmail: out.Data.Customer.Email,
		Metadata:      decodeMetadata(out.Data.Metadata),
	}
	if tx.Reference == "" {
		tx.Reference = reference
	}
	if tx.Reference != reference {
		return nil, fmt.Errorf("%w: asked for %q, got %q", ErrReferenceMismatch, reference, tx.Reference)
	}
	if out.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, out.Data.PaidAt); err == nil {
			tx.PaidAt = t
		}
	}
	if tx.PaidAt.IsZero() {
		tx.PaidAt = time.Now().UTC()
	}
	return tx, nil
}

// decodeMetadata accepts metadata sent either as an object or as a JSON-encoded string.
func decodeMetadata(raw json.RawMessage) map[string]any {
	md := map[string]any{}
	if len(raw) == 0 {
		return md
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		raw = json.RawMessage(asString)
	}
	if err := json.Unmarshal(raw, &md); err != nil {
		return map[string]any{}
	}
	return md
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
