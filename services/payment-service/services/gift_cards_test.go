package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/models"
	"github.com/cate-nduta/Lash-Business-sub002/services/payment-service/repository"
)

func TestStoreGiftCardLedger_Redeem(t *testing.T) {
	ctx := context.Background()
	stores := repository.NewStores(repository.NewMemoryStore())
	expired := testNow.Add(-time.Hour)
	require.NoError(t, stores.GiftCards.UpsertConfirmed(ctx, models.GiftCardGrant{NaturalKey: "gc-1", Code: "GC-11112222", BalanceMinor: 10000}))
	require.NoError(t, stores.GiftCards.UpsertConfirmed(ctx, models.GiftCardGrant{NaturalKey: "gc-2", Code: "GC-OLD", BalanceMinor: 10000, ExpiresAt: &expired}))

	ledger := NewStoreGiftCardLedger(stores.GiftCards)
	ledger.now = func() time.Time { return testNow }

	require.NoError(t, ledger.Redeem(ctx, " gc-11112222 ", 4000, "bk-1"))
	require.NoError(t, ledger.Redeem(ctx, "GC-11112222", 4000, "bk-1"))
	card, _, err := stores.GiftCards.FindConfirmed(ctx, "gc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), card.BalanceMinor)
	assert.Len(t, card.Redemptions, 1)

	assert.ErrorIs(t, ledger.Redeem(ctx, "GC-11112222", 7000, "bk-2"), ErrGiftCardInsufficient)
	assert.ErrorIs(t, ledger.Redeem(ctx, "GC-OLD", 1000, "bk-3"), ErrGiftCardExpired)
	assert.ErrorIs(t, ledger.Redeem(ctx, "GC-NOPE", 1000, "bk-4"), ErrGiftCardNotFound)
}

func TestNewGiftCardCode(t *testing.T) {
	assert.Regexp(t, `^GC-[0-9A-F]{8}$`, NewGiftCardCode())
}

func TestStoreReferralIssuer_ReusesCode(t *testing.T) {
	ctx := context.Background()
	stores := repository.NewStores(repository.NewMemoryStore())
	issuer := NewStoreReferralIssuer(stores.Referrals)

	first, created, err := issuer.Issue(ctx, "Amina@Lash.test", "Amina")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Regexp(t, `^AMIN-[0-9A-F]{6}$`, first.Code)

	second, created, err := issuer.Issue(ctx, "amina@lash.test", "Amina")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, 2, second.SentCount)
}

func TestSlotWindow(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)

	start, end, err := slotWindow("2025-03-14", "2:30 pm", 90, nairobi)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-14T14:30:00+03:00", start)
	assert.Equal(t, "2025-03-14T16:00:00+03:00", end)

	_, _, err = slotWindow("2025-03-14", "noon", 60, nairobi)
	assert.Error(t, err)
}
