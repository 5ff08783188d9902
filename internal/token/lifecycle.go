package token

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Jainex17/CoinPlay/internal/ledger"
	"github.com/Jainex17/CoinPlay/internal/metrics"
	"github.com/Jainex17/CoinPlay/internal/models"
	"github.com/sirupsen/logrus"
)

const maxNameLength = 64


// Config holds the economics of token creation.
type Config struct {
	CreationFee         int64
	InitialTokenReserve int64
	InitialBaseReserve  int64
}

// DefaultConfig returns the standard creation economics.
func DefaultConfig() Config {
	return Config{
		CreationFee:         1000,
		InitialTokenReserve: 1_000_000_000,
		InitialBaseReserve:  1000,
	}
}

// CreateTokenRequest is the input to CreateToken.
type CreateTokenRequest struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

func (r CreateTokenRequest) validate(creatorID uint) (name, symbol string, err error) {
	if creatorID == 0 {
		return "", "", ledger.Fail(ledger.ErrUnauthorized, "account is required")
	}
	name = strings.TrimSpace(r.Name)
	if name == "" {
		return "", "", ledger.Fail(ledger.ErrValidation, "name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", "", ledger.Fail(ledger.ErrValidation, "name must be at most %d characters", maxNameLength)
	}
	symbol, ok := ledger.ParseSymbol(r.Symbol)
	if !ok {
		return "", "", ledger.Fail(ledger.ErrValidation, "symbol must be 3 to 6 letters or digits")
	}
	return name, symbol, nil
}

// CreateToken charges the creator the creation fee and lists a new token
// with freshly seeded reserves. The fee and the token commit together.
func (s *service) CreateToken(ctx context.Context, req CreateTokenRequest, creatorID uint) (*models.Token, error) {
	start := time.Now()
	token, err := s.createToken(ctx, req, creatorID)

	s.metrics.ObserveTokenCreated(metrics.Outcome(err, ledger.IsBusiness(err)))
	entry := s.log.WithFields(logrus.Fields{
		"symbol":     ledger.NormalizeSymbol(req.Symbol),
		"creator_id": creatorID,
		"elapsed":    time.Since(start),
	})
	switch {
	case err == nil:
		entry.WithField("token_id", token.ID).Info("Token created")
	case ledger.IsBusiness(err):
		entry.WithError(err).Debug("Token creation rejected")
	default:
		entry.WithError(err).WithField("storage_detail", ledger.StorageDetail(err)).Error("Token creation failed")
	}
	return token, err
}

func (s *service) createToken(ctx context.Context, req CreateTokenRequest, creatorID uint) (*models.Token, error) {
	name, symbol, err := req.validate(creatorID)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.SymbolExists(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ledger.Fail(ledger.ErrSymbolTaken, "symbol %s is already taken", symbol)
	}

	token := &models.Token{
		Name:              name,
		Symbol:            symbol,
		CreatorID:         creatorID,
		TotalSupply:       s.cfg.InitialTokenReserve,
		TokenReserve:      s.cfg.InitialTokenReserve,
		BaseReserve:       s.cfg.InitialBaseReserve,
		CirculatingSupply: 0,
	}
	err = s.store.WithinUnit(ctx, func(u ledger.Unit) error {
		if _, err := u.LockAccount(creatorID); err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return ledger.Fail(ledger.ErrUnauthorized, "account %d does not exist", creatorID)
			}
			return err
		}
		if s.cfg.CreationFee > 0 {
			if _, err := u.DebitAccount(creatorID, s.cfg.CreationFee); err != nil {
				return err
			}
		}
		return u.InsertToken(token)
	})
	if err != nil {
		if errors.Is(err, ledger.ErrSymbolTaken) {
			return nil, ledger.Fail(ledger.ErrSymbolTaken, "symbol %s is already taken", symbol)
		}
		return nil, err
	}
	return token, nil
}
