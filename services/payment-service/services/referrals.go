package services

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
)

// ReferralIssuer returns a client's referral code, creating it on first use.
type ReferralIssuer interface {
	Issue(ctx context.Context, email, name string) (models.Referral, bool, error)
}

// StoreReferralIssuer keeps one code per client email in the referrals collection.
type StoreReferralIssuer struct {
	referrals *repository.RecordStore[models.Referral]
	now       func() time.Time
}

func NewStoreReferralIssuer(referrals *repository.RecordStore[models.Referral]) *StoreReferralIssuer {
	return &StoreReferralIssuer{referrals: referrals, now: time.Now}
}

// Issue returns the client's code and whether it was created by this call.
// Every call counts as one send.
func (r *StoreReferralIssuer) Issue(ctx context.Context, email, name string) (models.Referral, bool, error) {
	now := r.now().UTC()
	key := models.NormalizeEmail(email)
	_, after, existed, err := r.referrals.UpdateOrCreate(ctx, key,
		func() models.Referral {
			return models.Referral{Email: key, Code: referralCode(name), IssuedAt: now}
		},
		func(ref *models.Referral) (bool, error) {
			ref.SentCount++
			ref.LastSentAt = now
			return true, nil
		},
	)
	return after, !existed, err
}

func referralCode(name string) string {
	var prefix strings.Builder
	for _, r := range strings.ToUpper(name) {
		if unicode.IsLetter(r) && r < unicode.MaxASCII {
			prefix.WriteRune(r)
		}
		if prefix.Len() == 4 {
			break
		}
	}
	if prefix.Len() == 0 {
		prefix.WriteString("LASH")
	}
	return prefix.String() + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}
