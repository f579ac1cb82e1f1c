package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/pkg/db/models"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/pagination"
)

type fakeRepository struct {
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) Create(context.Context, *models.Notification) error { return nil }

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	if f.listFn == nil {
		return nil, nil, nil
	}
	return f.listFn(ctx, params)
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	if f.markReadFn == nil {
		return notificationMarkResult{}, nil
	}
	return f.markReadFn(ctx, userID, notificationID, now)
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	if f.markAllReadFn == nil {
		return 0, nil
	}
	return f.markAllReadFn(ctx, userID, now)
}

func (f *fakeRepository) DeleteOlderThan(context.Context, *gorm.DB, time.Time) (int64, error) {
	return 0, nil
}

func newServiceWithRepo(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc
}

func TestListReturnsPageAndCursor(t *testing.T) {
	userID := uuid.New()
	older := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}
	newer := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}

	var seen listNotificationsParams
	repo := &fakeRepository{
		listFn: func(_ context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
			seen = params
			return []models.Notification{newer, older}, &pagination.Cursor{CreatedAt: older.CreatedAt, ID: older.ID}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	result, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.NotEmpty(t, result.Cursor)

	// The requested page size reaches the repo untouched. Normalization and
	// the lookahead row are the repo's job.
	assert.Equal(t, userID, seen.UserID)
	assert.Equal(t, 2, seen.Limit)
	assert.Nil(t, seen.Cursor)
}

func TestListLastPageHasNoCursor(t *testing.T) {
	repo := &fakeRepository{
		listFn: func(context.Context, listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
			return []models.Notification{{ID: uuid.New()}}, nil, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Empty(t, result.Cursor)
}

func TestListRejectsMissingUser(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.List(context.Background(), ListParams{})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestListRejectsBadCursor(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "not-a-cursor"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID, time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestMarkReadAlreadyReadIsNoop(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(context.Context, uuid.UUID, uuid.UUID, time.Time) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: false}, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	assert.NoError(t, svc.MarkRead(context.Background(), uuid.New(), uuid.New()))
}

func TestMarkReadValidatesIDs(t *testing.T) {
	svc := newServiceWithRepo(t, &fakeRepository{})

	err := svc.MarkRead(context.Background(), uuid.Nil, uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	err = svc.MarkRead(context.Background(), uuid.New(), uuid.Nil)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestMarkAllReadPropagatesFailure(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(context.Context, uuid.UUID, time.Time) (int64, error) {
			return 0, errors.New("db down")
		},
	}
	svc := newServiceWithRepo(t, repo)

	_, err := svc.MarkAllRead(context.Background(), uuid.New())
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestMarkAllReadReturnsCount(t *testing.T) {
	repo := &fakeRepository{
		markAllReadFn: func(context.Context, uuid.UUID, time.Time) (int64, error) {
			return 3, nil
		},
	}
	svc := newServiceWithRepo(t, repo)

	count, err := svc.MarkAllRead(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
