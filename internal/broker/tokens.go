package broker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tradingcore/engine/internal/clock"
	"github.com/tradingcore/engine/internal/store"
	"github.com/tradingcore/engine/types"
)

// TokenManager owns the C12 token lifecycle: issuing a token on first use,
// refreshing it at 90% of its lifetime, and persisting it so a restart
// doesn't force a fresh issuance. Grounded on the teacher's reconciler-style
// "recover state on startup, then keep it fresh" pattern in
// execution/reconciler.go.
type TokenManager struct {
	auth      AuthClient
	tokens    *store.TokenRepository
	clk       clock.Clock
	appKey    string
	appSecret string
	log       zerolog.Logger

	onRefresh func(accountID string)
}

func NewTokenManager(auth AuthClient, tokens *store.TokenRepository, c clock.Clock, appKey, appSecret string, log zerolog.Logger) *TokenManager {
	return &TokenManager{
		auth:      auth,
		tokens:    tokens,
		clk:       c,
		appKey:    appKey,
		appSecret: appSecret,
		log:       log.With().Str("component", "broker.tokens").Logger(),
	}
}

// OnRefresh registers a callback invoked after every successful refresh,
// used by the caller to emit a TokenRefreshed outbox event.
func (m *TokenManager) OnRefresh(fn func(accountID string)) {
	m.onRefresh = fn
}

// refreshThreshold is the spec §6 "refresh at 90% of expiresIn" rule.
const refreshThreshold = 0.9

// Get returns a valid access token for accountID, issuing or refreshing it
// as needed.
func (m *TokenManager) Get(ctx context.Context, accountID string) (string, error) {
	existing, err := m.tokens.Get(accountID)
	if err != nil {
		return "", err
	}

	if existing == nil {
		return m.issue(ctx, accountID)
	}

	lifetime := existing.ExpiresAt.Sub(existing.IssuedAt)
	elapsed := m.clk.Now().Sub(existing.IssuedAt)
	if lifetime <= 0 || float64(elapsed) >= float64(lifetime)*refreshThreshold {
		return m.refresh(ctx, accountID, existing.AccessToken)
	}
	return existing.AccessToken, nil
}

func (m *TokenManager) issue(ctx context.Context, accountID string) (string, error) {
	set, err := m.auth.IssueToken(ctx, m.appKey, m.appSecret)
	if err != nil {
		return "", err
	}
	return m.persist(accountID, set)
}

func (m *TokenManager) refresh(ctx context.Context, accountID, currentToken string) (string, error) {
	set, err := m.auth.RefreshToken(ctx, m.appKey, m.appSecret, currentToken)
	if err != nil {
		m.log.Warn().Str("accountId", accountID).Err(err).Msg("token refresh failed")
		return "", err
	}
	token, err := m.persist(accountID, set)
	if err != nil {
		return "", err
	}
	if m.onRefresh != nil {
		m.onRefresh(accountID)
	}
	return token, nil
}

func (m *TokenManager) persist(accountID string, set TokenSet) (string, error) {
	now := m.clk.Now()
	err := m.tokens.Upsert(store.BrokerToken{
		AccountID:   accountID,
		AccessToken: set.AccessToken,
		TokenType:   set.TokenType,
		ApprovalKey: set.ApprovalKey,
		IssuedAt:    now,
		ExpiresAt:   now.Add(set.ExpiresIn),
	})
	if err != nil {
		return "", err
	}
	return set.AccessToken, nil
}

// RefreshEvent builds the TokenRefreshed outbox payload (spec §6).
func RefreshEvent(accountID string, now time.Time) types.OutboxEvent {
	return types.OutboxEvent{
		EventType:  types.EventTokenRefreshed,
		OccurredAt: now,
		Payload:    map[string]string{"accountId": accountID},
		Status:     types.OutboxPending,
	}
}
