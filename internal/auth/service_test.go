package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/internal/users"
	pkgAuth "github.com/routong/routong-backend/pkg/auth"
	"github.com/routong/routong-backend/pkg/auth/session"
	"github.com/routong/routong-backend/pkg/config"
	"github.com/routong/routong-backend/pkg/db/models"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/security"
)

type stubUserRepo struct {
	byPhone map[string]*models.User
	byID    map[uuid.UUID]*models.User
	created []users.CreateUserDTO
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byPhone: make(map[string]*models.User),
		byID:    make(map[uuid.UUID]*models.User),
	}
}

func (s *stubUserRepo) add(user *models.User) {
	s.byPhone[user.Phone] = user
	s.byID[user.ID] = user
}

func (s *stubUserRepo) Create(ctx context.Context, dto users.CreateUserDTO) (*models.User, error) {
	s.created = append(s.created, dto)
	user := dto.ToModel()
	s.add(user)
	return user, nil
}

func (s *stubUserRepo) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	if user, ok := s.byPhone[phone]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if user, ok := s.byID[id]; ok {
		return user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return nil
}

type stubSession struct {
	refreshByAccessID map[string]string
}

func newStubSession() *stubSession {
	return &stubSession{refreshByAccessID: make(map[string]string)}
}

func (s *stubSession) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	s.refreshByAccessID[accessID] = token
	return token, nil
}

func (s *stubSession) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.refreshByAccessID[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.refreshByAccessID, oldAccessID)
	newID := session.NewAccessID()
	token := "refresh-" + newID
	s.refreshByAccessID[newID] = token
	return newID, token, nil
}

func (s *stubSession) Revoke(ctx context.Context, accessID string) error {
	delete(s.refreshByAccessID, accessID)
	return nil
}

type stubWalletCreator struct {
	createdFor []uuid.UUID
}

func (s *stubWalletCreator) CreateWallet(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*models.Wallet, error) {
	s.createdFor = append(s.createdFor, userID)
	return &models.Wallet{ID: uuid.New(), UserID: userID}, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newAuthService(t *testing.T, repo *stubUserRepo, wallets *stubWalletCreator, sessions *stubSession) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		UserRepoWithTx: func(tx *gorm.DB) UserRepository { return repo },
		Ledger:         wallets,
		SessionManager: sessions,
		TxRunner:       passthroughTxRunner{},
		JWTConfig: config.JWTConfig{
			Secret:            "test-secret",
			Issuer:            "routong-test",
			ExpirationMinutes: 15,
			RefreshTokenDays:  30,
		},
	})
	require.NoError(t, err)
	return svc
}

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	require.NoError(t, err)
	return hash
}

func TestRegisterCreatesUserAndWallet(t *testing.T) {
	repo := newStubUserRepo()
	wallets := &stubWalletCreator{}
	svc := newAuthService(t, repo, wallets, newStubSession())

	resp, err := svc.Register(context.Background(), RegisterRequest{
		Phone:    "+8613800000001",
		Nickname: "runner",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "runner", resp.User.Nickname)

	require.Len(t, repo.created, 1)
	require.Len(t, wallets.createdFor, 1)
	assert.Equal(t, resp.User.ID, wallets.createdFor[0])
}

func TestRegisterDuplicatePhone(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&models.User{ID: uuid.New(), Phone: "+8613800000001", IsActive: true})
	svc := newAuthService(t, repo, &stubWalletCreator{}, newStubSession())

	_, err := svc.Register(context.Background(), RegisterRequest{
		Phone:    "+8613800000001",
		Nickname: "runner",
		Password: "correct horse",
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
}

func TestLoginSuccess(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&models.User{
		ID:           uuid.New(),
		Phone:        "+8613800000002",
		Nickname:     "walker",
		PasswordHash: hashFor(t, "open sesame"),
		IsActive:     true,
	})
	svc := newAuthService(t, repo, &stubWalletCreator{}, newStubSession())

	resp, err := svc.Login(context.Background(), LoginRequest{Phone: "+8613800000002", Password: "open sesame"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&models.User{
		ID:           uuid.New(),
		Phone:        "+8613800000002",
		PasswordHash: hashFor(t, "open sesame"),
		IsActive:     true,
	})
	svc := newAuthService(t, repo, &stubWalletCreator{}, newStubSession())

	_, err := svc.Login(context.Background(), LoginRequest{Phone: "+8613800000002", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestLoginInactiveUser(t *testing.T) {
	repo := newStubUserRepo()
	repo.add(&models.User{
		ID:           uuid.New(),
		Phone:        "+8613800000003",
		PasswordHash: hashFor(t, "open sesame"),
		IsActive:     false,
	})
	svc := newAuthService(t, repo, &stubWalletCreator{}, newStubSession())

	_, err := svc.Login(context.Background(), LoginRequest{Phone: "+8613800000003", Password: "open sesame"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRotatesSession(t *testing.T) {
	repo := newStubUserRepo()
	user := &models.User{
		ID:           uuid.New(),
		Phone:        "+8613800000004",
		PasswordHash: hashFor(t, "open sesame"),
		IsActive:     true,
	}
	repo.add(user)
	sessions := newStubSession()
	svc := newAuthService(t, repo, &stubWalletCreator{}, sessions)

	first, err := svc.Login(context.Background(), LoginRequest{Phone: user.Phone, Password: "open sesame"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  first.AccessToken,
		RefreshToken: first.RefreshToken,
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, refreshed.RefreshToken)

	// Old pair is dead after rotation.
	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  first.AccessToken,
		RefreshToken: first.RefreshToken,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	repo := newStubUserRepo()
	svc := newAuthService(t, repo, &stubWalletCreator{}, newStubSession())

	forged, err := pkgAuth.MintAccessToken(config.JWTConfig{
		Secret:            "other-secret",
		Issuer:            "routong-test",
		ExpirationMinutes: 15,
	}, time.Now(), pkgAuth.AccessTokenPayload{UserID: uuid.New()})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: forged, RefreshToken: "whatever"})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}
