package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"mms-goldcore/internal/model"
	"mms-goldcore/internal/store"
	"mms-goldcore/internal/types"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrEmailTaken          = errors.New("auth: email already registered")
	ErrUnknownReferralCode = errors.New("auth: unknown referral code")
)

type Service struct {
	store  store.Store
	issuer string
	secret []byte
	ttl    time.Duration
}

func NewService(st store.Store, issuer string, secret []byte, ttl time.Duration) *Service {
	return &Service{store: st, issuer: issuer, secret: secret, ttl: ttl}
}

type RegisterRequest struct {
	Email        string
	Password     string
	Name         string
	ReferralCode string
}

// Register creates an account with a fresh referral code. When the
// request carries a referral code the new account is linked under its
// owner, which is what feeds the commission chain later.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.Account, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, errors.New("auth: email and password required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var referrerID *string
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		referrer, err := s.store.GetAccountByReferralCode(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUnknownReferralCode
			}
			return nil, err
		}
		referrerID = &referrer.ID
	}

	acc := &model.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(req.Name),
		ReferralCode: newReferralCode(),
		ReferrerID:   referrerID,
		Status:       types.AccountStatusActive,
		Balance:      decimal.Zero,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return acc, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	acc, err := s.store.GetAccountByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.signToken(acc.ID)
}

func (s *Service) signToken(userID string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

func (s *Service) ParseToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Issuer != s.issuer {
		return "", errors.New("invalid issuer")
	}
	if claims.Subject == "" {
		return "", errors.New("invalid subject")
	}
	return claims.Subject, nil
}

func newReferralCode() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "MMS-" + raw[:4] + "-" + raw[4:8]
}
