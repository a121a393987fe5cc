package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// AccountService handles platform account login and bookkeeping
type AccountService struct {
	accounts   ports.AccountRepository
	sessions   ports.LoginSessionStore
	platform   ports.PlatformGateway
	sessionTTL time.Duration
	logger     *logger.Logger
	now        func() time.Time
}

// NewAccountService creates a new account service
func NewAccountService(
	accounts ports.AccountRepository,
	sessions ports.LoginSessionStore,
	platform ports.PlatformGateway,
	sessionTTL time.Duration,
	logger *logger.Logger,
) *AccountService {
	return &AccountService{
		accounts:   accounts,
		sessions:   sessions,
		platform:   platform,
		sessionTTL: sessionTTL,
		logger:     logger.WithComponent("accounts"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ListAccounts returns every account, newest first
func (s *AccountService) ListAccounts(ctx context.Context) ([]*entities.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// StartQRLogin issues a login QR code and opens a session for polling it.
func (s *AccountService) StartQRLogin(ctx context.Context) (*ports.QRLoginResponse, error) {
	qr, err := s.platform.GenerateQRCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate qrcode: %w", err)
	}

	png, err := renderQRCode(qr.URL)
	if err != nil {
		return nil, err
	}

	session := &entities.LoginSession{
		Key:       uuid.NewString(),
		AuthCode:  qr.AuthCode,
		QRCodeURL: qr.URL,
		Status:    entities.LoginStatusPending,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save login session: %w", err)
	}

	s.logger.Infow("QR login started", "session", session.Key)

	return &ports.QRLoginResponse{
		Image: base64.StdEncoding.EncodeToString(png),
		Key:   session.Key,
	}, nil
}

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func renderQRCode(content string) ([]byte, error) {
	qrc, err := qrcode.NewWith(content, qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium))
	if err != nil {
		return nil, fmt.Errorf("failed to encode qrcode: %w", err)
	}

	buf := new(bytes.Buffer)
	w := standard.NewWithWriter(nopCloser{buf},
		standard.WithQRWidth(10),
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
	)
	if err := qrc.Save(w); err != nil {
		return nil, fmt.Errorf("failed to render qrcode: %w", err)
	}

	return buf.Bytes(), nil
}

// CheckLogin advances a QR login session by one poll. Sessions that reach
// a terminal state are removed.
func (s *AccountService) CheckLogin(ctx context.Context, key string) (*ports.LoginCheckResponse, error) {
	if key == "" {
		return checkResult(entities.LoginStatusFailed, "missing session key"), nil
	}

	session, err := s.sessions.Get(ctx, key)
	if err != nil {
		if errors.Is(err, entities.ErrSessionNotFound) {
			return checkResult(entities.LoginStatusFailed, "session not found"), nil
		}
		return nil, fmt.Errorf("failed to load login session: %w", err)
	}

	if session.Expired(s.now(), s.sessionTTL) {
		s.dropSession(ctx, key)
		return checkResult(entities.LoginStatusExpired, "qrcode expired, please request a new one"), nil
	}

	poll, err := s.platform.PollQRCode(ctx, session.AuthCode)
	if err != nil {
		s.logger.WithError(err).Warnw("QR login poll failed", "session", key)
		return checkResult(entities.LoginStatusPending, "checking..."), nil
	}

	switch poll.Status {
	case entities.LoginStatusSuccess:
		account, err := s.upsertFromCookies(ctx, poll.Cookies)
		s.dropSession(ctx, key)
		if err != nil {
			s.logger.WithError(err).Warnw("QR login profile lookup failed", "session", key)
			return checkResult(entities.LoginStatusFailed, "failed to fetch account profile: "+err.Error()), nil
		}
		s.logger.Infow("Account logged in by QR code", "uid", account.UID, "uname", account.Uname)
		return checkResult(entities.LoginStatusSuccess, "login succeeded"), nil

	case entities.LoginStatusExpired, entities.LoginStatusFailed:
		s.dropSession(ctx, key)
		return checkResult(poll.Status, poll.Message), nil

	default:
		if session.Status != poll.Status {
			session.Status = poll.Status
			session.Message = poll.Message
			if err := s.sessions.Save(ctx, session); err != nil {
				s.logger.WithError(err).Warnw("Failed to update login session", "session", key)
			}
		}
		return checkResult(poll.Status, poll.Message), nil
	}
}

func checkResult(status entities.LoginStatus, message string) *ports.LoginCheckResponse {
	return &ports.LoginCheckResponse{Status: status, Message: message}
}

func (s *AccountService) dropSession(ctx context.Context, key string) {
	if err := s.sessions.Delete(ctx, key); err != nil {
		s.logger.WithError(err).Warnw("Failed to delete login session", "session", key)
	}
}

// CancelLogin abandons a QR login session. Unknown keys are ignored.
func (s *AccountService) CancelLogin(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to cancel login: %w", err)
	}
	return nil
}

// LoginByCookie registers or refreshes an account from a raw cookie header.
func (s *AccountService) LoginByCookie(ctx context.Context, cookies string) (*entities.Account, error) {
	cookies = strings.TrimSpace(cookies)
	if cookies == "" {
		return nil, entities.ErrEmptyCookies
	}

	account, err := s.upsertFromCookies(ctx, cookies)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Account logged in by cookie", "uid", account.UID, "uname", account.Uname)
	return account, nil
}

func (s *AccountService) upsertFromCookies(ctx context.Context, cookies string) (*entities.Account, error) {
	profile, err := s.platform.Profile(ctx, cookies)
	if err != nil {
		return nil, fmt.Errorf("failed to verify cookies: %w", err)
	}

	account, err := s.accounts.GetByUID(ctx, profile.Mid)
	isNew := errors.Is(err, entities.ErrAccountNotFound)
	if err != nil && !isNew {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if isNew {
		account = &entities.Account{UID: profile.Mid}
	}

	account.Uname = profile.Uname
	account.Face = profile.Face
	account.Level = profile.Level
	account.MarkLoggedIn(cookies, s.now())

	if isNew {
		err = s.accounts.Create(ctx, account)
	} else {
		err = s.accounts.Update(ctx, account)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	return account, nil
}

// DeleteAccount removes an account with its tasks and their history
func (s *AccountService) DeleteAccount(ctx context.Context, id int64) error {
	if err := s.accounts.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	s.logger.Infow("Account deleted", "account_id", id)
	return nil
}
