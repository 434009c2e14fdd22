package token_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/services/token"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

// Мок для Repository
type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) GetUserByUID(ctx context.Context, uid string) (*models.User, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *RepoMock) CreateRefreshToken(ctx context.Context, token models.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *RepoMock) GetRefreshToken(ctx context.Context, tokenID string) (*models.RefreshToken, error) {
	args := m.Called(ctx, tokenID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}

func (m *RepoMock) GetActiveTokenByFingerprint(ctx context.Context, userUID, fingerprint string) (*models.RefreshToken, error) {
	args := m.Called(ctx, userUID, fingerprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}

func (m *RepoMock) BlockRefreshTokenIfActive(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func (m *RepoMock) RotateRefreshToken(ctx context.Context, oldTokenID string, next models.RefreshToken) error {
	args := m.Called(ctx, oldTokenID, next)
	return args.Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strptr(s string) *string { return &s }

func TestAuthority_Issue(t *testing.T) {
	const (
		userUID     = "3d5e7a10-1111-2222-3333-444455556666"
		fingerprint = "device-abc"
	)

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		wantErr    error
	}{
		{
			name: "success without previous token",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByUID", mock.Anything, userUID).
					Return(&models.User{UID: userUID}, nil).Once()
				r.On("GetActiveTokenByFingerprint", mock.Anything, userUID, fingerprint).
					Return(nil, storage.ErrNotFound).Once()
				r.On("CreateRefreshToken", mock.Anything, mock.MatchedBy(func(tok models.RefreshToken) bool {
					return tok.UserUID == userUID &&
						tok.Fingerprint == fingerprint &&
						!tok.IsBlocked &&
						tok.ID != ""
				})).Return(nil).Once()
			},
		},
		{
			name: "previous active token is revoked first",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByUID", mock.Anything, userUID).
					Return(&models.User{UID: userUID}, nil).Once()
				r.On("GetActiveTokenByFingerprint", mock.Anything, userUID, fingerprint).
					Return(&models.RefreshToken{ID: "old-token", UserUID: userUID, Fingerprint: fingerprint}, nil).Once()
				r.On("BlockRefreshTokenIfActive", mock.Anything, "old-token").
					Return(true, nil).Once()
				r.On("CreateRefreshToken", mock.Anything, mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "lost issue race is retried after revoking the winner",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByUID", mock.Anything, userUID).
					Return(&models.User{UID: userUID}, nil).Once()
				r.On("GetActiveTokenByFingerprint", mock.Anything, userUID, fingerprint).
					Return(nil, storage.ErrNotFound).Once()
				r.On("CreateRefreshToken", mock.Anything, mock.Anything).
					Return(storage.ErrAlreadyExists).Once()
				r.On("GetActiveTokenByFingerprint", mock.Anything, userUID, fingerprint).
					Return(&models.RefreshToken{ID: "winner-token", UserUID: userUID, Fingerprint: fingerprint}, nil).Once()
				r.On("BlockRefreshTokenIfActive", mock.Anything, "winner-token").
					Return(true, nil).Once()
				r.On("CreateRefreshToken", mock.Anything, mock.Anything).Return(nil).Once()
			},
		},
		{
			name: "issue race retries exhausted",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByUID", mock.Anything, userUID).
					Return(&models.User{UID: userUID}, nil).Once()
				r.On("GetActiveTokenByFingerprint", mock.Anything, userUID, fingerprint).
					Return(nil, storage.ErrNotFound).Twice()
				r.On("CreateRefreshToken", mock.Anything, mock.Anything).
					Return(storage.ErrAlreadyExists).Twice()
			},
			wantErr: token.ErrRefreshTokenCreation,
		},
		{
			name: "unknown user",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByUID", mock.Anything, userUID).
					Return(nil, storage.ErrNotFound).Once()
			},
			wantErr: token.ErrUserDoesNotExist,
		},
		{
			name: "storage failure on create",
			setupMocks: func(r *RepoMock) {
				r.On("GetUserByUID", mock.Anything, userUID).
					Return(&models.User{UID: userUID}, nil).Once()
				r.On("GetActiveTokenByFingerprint", mock.Anything, userUID, fingerprint).
					Return(nil, storage.ErrNotFound).Once()
				r.On("CreateRefreshToken", mock.Anything, mock.Anything).
					Return(errors.New("db down")).Once()
			},
			wantErr: errors.New("db down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			authority := token.New(repo, discardLogger(), time.Hour, false)

			got, err := authority.Issue(context.Background(), userUID, fingerprint, strptr("10.0.0.1"))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			} else {
				require.NoError(t, err)
				assert.Equal(t, userUID, got.UserUID)
				assert.Equal(t, fingerprint, got.Fingerprint)
				assert.False(t, got.IsBlocked)
				assert.True(t, got.ExpireAt.After(time.Now()))
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestAuthority_Rotate(t *testing.T) {
	const tokenID = "token-1"

	active := &models.RefreshToken{
		ID:          tokenID,
		UserUID:     "user-1",
		Fingerprint: "device-abc",
		IsBlocked:   false,
		ExpireAt:    time.Now().Add(time.Hour),
	}

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		wantErr    error
	}{
		{
			name: "successful rotation keeps user and fingerprint",
			setupMocks: func(r *RepoMock) {
				r.On("GetRefreshToken", mock.Anything, tokenID).Return(active, nil).Once()
				r.On("RotateRefreshToken", mock.Anything, tokenID, mock.MatchedBy(func(next models.RefreshToken) bool {
					return next.UserUID == active.UserUID &&
						next.Fingerprint == active.Fingerprint &&
						next.ID != tokenID &&
						!next.IsBlocked
				})).Return(nil).Once()
			},
		},
		{
			name: "absent token",
			setupMocks: func(r *RepoMock) {
				r.On("GetRefreshToken", mock.Anything, tokenID).
					Return(nil, storage.ErrNotFound).Once()
			},
			wantErr: token.ErrTokenAbsent,
		},
		{
			name: "blacklisted token is a replay",
			setupMocks: func(r *RepoMock) {
				blocked := *active
				blocked.IsBlocked = true
				r.On("GetRefreshToken", mock.Anything, tokenID).Return(&blocked, nil).Once()
			},
			wantErr: token.ErrTokenBlacklisted,
		},
		{
			name: "lost rotation race",
			setupMocks: func(r *RepoMock) {
				r.On("GetRefreshToken", mock.Anything, tokenID).Return(active, nil).Once()
				r.On("RotateRefreshToken", mock.Anything, tokenID, mock.Anything).
					Return(storage.ErrAlreadyExists).Once()
			},
			wantErr: token.ErrTokenBlacklisted,
		},
		{
			name: "transaction failure",
			setupMocks: func(r *RepoMock) {
				r.On("GetRefreshToken", mock.Anything, tokenID).Return(active, nil).Once()
				r.On("RotateRefreshToken", mock.Anything, tokenID, mock.Anything).
					Return(errors.New("tx failed")).Once()
			},
			wantErr: token.ErrRefreshTokenCreation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			authority := token.New(repo, discardLogger(), time.Hour, false)

			got, err := authority.Rotate(context.Background(), tokenID)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.NotEqual(t, tokenID, got.ID)
				assert.Equal(t, active.UserUID, got.UserUID)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestAuthority_Validate(t *testing.T) {
	const (
		tokenID     = "token-1"
		userUID     = "user-1"
		fingerprint = "device-abc"
	)

	valid := models.RefreshToken{
		ID:          tokenID,
		UserUID:     userUID,
		Fingerprint: fingerprint,
		IP:          strptr("10.0.0.1"),
		IsBlocked:   false,
		ExpireAt:    time.Now().Add(time.Hour),
	}

	tests := []struct {
		name        string
		stored      *models.RefreshToken
		storedErr   error
		fingerprint string
		ip          *string
		enforceIP   bool
		wantErr     error
	}{
		{
			name:        "valid token",
			stored:      &valid,
			fingerprint: fingerprint,
			ip:          strptr("10.0.0.1"),
		},
		{
			name:        "absent token",
			storedErr:   storage.ErrNotFound,
			fingerprint: fingerprint,
			wantErr:     token.ErrTokenAbsent,
		},
		{
			name: "expired token",
			stored: func() *models.RefreshToken {
				t := valid
				t.ExpireAt = time.Now().Add(-time.Minute)
				return &t
			}(),
			fingerprint: fingerprint,
			wantErr:     token.ErrTokenExpired,
		},
		{
			name: "expired wins over blacklisted",
			stored: func() *models.RefreshToken {
				t := valid
				t.ExpireAt = time.Now().Add(-time.Minute)
				t.IsBlocked = true
				return &t
			}(),
			fingerprint: fingerprint,
			wantErr:     token.ErrTokenExpired,
		},
		{
			name: "blacklisted token",
			stored: func() *models.RefreshToken {
				t := valid
				t.IsBlocked = true
				return &t
			}(),
			fingerprint: fingerprint,
			wantErr:     token.ErrTokenBlacklisted,
		},
		{
			name:        "fingerprint mismatch",
			stored:      &valid,
			fingerprint: "other-device",
			wantErr:     token.ErrInvalidTokenData,
		},
		{
			name:        "ip mismatch is tolerated by default",
			stored:      &valid,
			fingerprint: fingerprint,
			ip:          strptr("192.168.0.7"),
		},
		{
			name:        "ip mismatch rejected when enforced",
			stored:      &valid,
			fingerprint: fingerprint,
			ip:          strptr("192.168.0.7"),
			enforceIP:   true,
			wantErr:     token.ErrInvalidTokenData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			if tt.storedErr != nil {
				repo.On("GetRefreshToken", mock.Anything, tokenID).Return(nil, tt.storedErr).Once()
			} else {
				repo.On("GetRefreshToken", mock.Anything, tokenID).Return(tt.stored, nil).Once()
			}
			authority := token.New(repo, discardLogger(), time.Hour, tt.enforceIP)

			uid, err := authority.Validate(context.Background(), tokenID, tt.fingerprint, tt.ip)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, userUID, uid)
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestAuthority_Revoke(t *testing.T) {
	const tokenID = "token-1"

	tests := []struct {
		name       string
		setupMocks func(r *RepoMock)
		wantErr    error
	}{
		{
			name: "active token revoked",
			setupMocks: func(r *RepoMock) {
				r.On("BlockRefreshTokenIfActive", mock.Anything, tokenID).
					Return(true, nil).Once()
			},
		},
		{
			name: "already revoked is a no-op",
			setupMocks: func(r *RepoMock) {
				r.On("BlockRefreshTokenIfActive", mock.Anything, tokenID).
					Return(false, nil).Once()
			},
		},
		{
			name: "absent token",
			setupMocks: func(r *RepoMock) {
				r.On("BlockRefreshTokenIfActive", mock.Anything, tokenID).
					Return(false, storage.ErrNotFound).Once()
			},
			wantErr: token.ErrTokenAbsent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			tt.setupMocks(repo)
			authority := token.New(repo, discardLogger(), time.Hour, false)

			err := authority.Revoke(context.Background(), tokenID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			repo.AssertExpectations(t)
		})
	}
}
