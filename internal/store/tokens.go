package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// BrokerToken is the store-level view of the C12 token lifecycle state.
type BrokerToken struct {
	AccountID   string
	AccessToken string
	TokenType   string
	ApprovalKey string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// TokenRepository persists broker auth tokens (spec §6 AuthClient, C12).
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Upsert(t BrokerToken) error {
	row := BrokerTokenRow{
		AccountID:   t.AccountID,
		AccessToken: t.AccessToken,
		TokenType:   t.TokenType,
		ApprovalKey: t.ApprovalKey,
		IssuedAt:    t.IssuedAt,
		ExpiresAt:   t.ExpiresAt,
	}
	return r.db.Save(&row).Error
}

func (r *TokenRepository) Get(accountID string) (*BrokerToken, error) {
	var row BrokerTokenRow
	err := r.db.Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &BrokerToken{
		AccountID:   row.AccountID,
		AccessToken: row.AccessToken,
		TokenType:   row.TokenType,
		ApprovalKey: row.ApprovalKey,
		IssuedAt:    row.IssuedAt,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}
