package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/auth-service/internal/models"
	"github.com/magabrotheeeer/auth-service/internal/storage"
)

func TestStorage_CreateUser(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")

	email := "test@example.com"
	uid, err := st.CreateUser(context.Background(), models.User{
		Login:        "testuser",
		Email:        &email,
		PasswordHash: "hashedpassword",
		RoleID:       1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, uid)

	// Повторный логин — конфликт уникальности
	_, err = st.CreateUser(context.Background(), models.User{
		Login:        "testuser",
		PasswordHash: "otherhash",
		RoleID:       1,
	})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestStorage_GetUserByLogin(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	uid := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)

	got, err := st.GetUserByLogin(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Equal(t, uid, got.UID)
	assert.Equal(t, "testuser", got.Login)
	require.NotNil(t, got.Email)
	assert.Equal(t, "test@example.com", *got.Email)
	assert.False(t, got.IsRegistered)

	_, err = st.GetUserByLogin(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_MarkUserRegistered(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	uid := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)

	err := st.MarkUserRegistered(context.Background(), uid)
	require.NoError(t, err)

	verification := NewTestVerification(st)
	verification.VerifyUserRegistered(t, uid, true)

	err = st.MarkUserRegistered(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_BlockRefreshTokenIfActive(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)

	tokenID := uuid.New().String()
	factory.CreateRefreshToken(t, tokenID, userUID, "device-abc", false, time.Now().Add(time.Hour))

	// Активный токен отзывается
	blocked, err := st.BlockRefreshTokenIfActive(context.Background(), tokenID)
	require.NoError(t, err)
	assert.True(t, blocked)

	verification := NewTestVerification(st)
	verification.VerifyTokenBlocked(t, tokenID, true)

	// Повторный отзыв — no-op, а не ошибка
	blocked, err = st.BlockRefreshTokenIfActive(context.Background(), tokenID)
	require.NoError(t, err)
	assert.False(t, blocked)

	// Несуществующий токен
	_, err = st.BlockRefreshTokenIfActive(context.Background(), uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_CreateRefreshToken_SingleActivePerPair(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)

	first := models.RefreshToken{
		ID:          uuid.New().String(),
		UserUID:     userUID,
		Fingerprint: "device-abc",
		ExpireAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateRefreshToken(context.Background(), first))

	// Второй активный токен той же пары отклоняется уникальным индексом:
	// это страхует выдачу от гонки двух конкурентных Issue.
	second := models.RefreshToken{
		ID:          uuid.New().String(),
		UserUID:     userUID,
		Fingerprint: "device-abc",
		ExpireAt:    time.Now().Add(time.Hour),
	}
	err := st.CreateRefreshToken(context.Background(), second)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	// Для другого отпечатка ограничение не действует
	other := models.RefreshToken{
		ID:          uuid.New().String(),
		UserUID:     userUID,
		Fingerprint: "device-xyz",
		ExpireAt:    time.Now().Add(time.Hour),
	}
	require.NoError(t, st.CreateRefreshToken(context.Background(), other))

	// После отзыва первого токена пара снова свободна
	blocked, err := st.BlockRefreshTokenIfActive(context.Background(), first.ID)
	require.NoError(t, err)
	require.True(t, blocked)
	require.NoError(t, st.CreateRefreshToken(context.Background(), second))
}

func TestStorage_RotateRefreshToken(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)

	oldID := uuid.New().String()
	factory.CreateRefreshToken(t, oldID, userUID, "device-abc", false, time.Now().Add(time.Hour))

	next := models.RefreshToken{
		ID:          uuid.New().String(),
		UserUID:     userUID,
		Fingerprint: "device-abc",
		ExpireAt:    time.Now().Add(time.Hour),
	}
	err := st.RotateRefreshToken(context.Background(), oldID, next)
	require.NoError(t, err)

	verification := NewTestVerification(st)
	verification.VerifyTokenBlocked(t, oldID, true)
	verification.VerifyTokenBlocked(t, next.ID, false)

	// Вторая ротация того же токена проигрывает: он уже отозван
	loser := models.RefreshToken{
		ID:          uuid.New().String(),
		UserUID:     userUID,
		Fingerprint: "device-abc",
		ExpireAt:    time.Now().Add(time.Hour),
	}
	err = st.RotateRefreshToken(context.Background(), oldID, loser)
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	// Проигравший токен не должен был сохраниться
	_, err = st.GetRefreshToken(context.Background(), loser.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_GetActiveTokenByFingerprint(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)

	_, err := st.GetActiveTokenByFingerprint(context.Background(), userUID, "device-abc")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	blockedID := uuid.New().String()
	factory.CreateRefreshToken(t, blockedID, userUID, "device-abc", true, time.Now().Add(time.Hour))

	activeID := uuid.New().String()
	factory.CreateRefreshToken(t, activeID, userUID, "device-abc", false, time.Now().Add(time.Hour))

	got, err := st.GetActiveTokenByFingerprint(context.Background(), userUID, "device-abc")
	require.NoError(t, err)
	assert.Equal(t, activeID, got.ID)
}

func TestStorage_ApplySeed(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	err := st.ApplySeed(context.Background(), BaseStatements)
	require.NoError(t, err)

	// Повторное применение сида идемпотентно
	err = st.ApplySeed(context.Background(), BaseStatements)
	require.NoError(t, err)

	role, err := st.GetRole(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "lead", role.Name)
}

func TestStorage_MdUser(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)

	_, err := st.GetMdUser(context.Background(), userUID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	firstName := "Ivan"
	err = st.UpsertMdUser(context.Background(), models.MdUser{
		UserUID:   userUID,
		FirstName: &firstName,
	})
	require.NoError(t, err)

	got, err := st.GetMdUser(context.Background(), userUID)
	require.NoError(t, err)
	require.NotNil(t, got.FirstName)
	assert.Equal(t, "Ivan", *got.FirstName)
	assert.Nil(t, got.LastName)

	// Повторный upsert обновляет профиль, а не падает на конфликте
	lastName := "Petrov"
	err = st.UpsertMdUser(context.Background(), models.MdUser{
		UserUID:  userUID,
		LastName: &lastName,
	})
	require.NoError(t, err)

	got, err = st.GetMdUser(context.Background(), userUID)
	require.NoError(t, err)
	assert.Nil(t, got.FirstName)
	require.NotNil(t, got.LastName)
	assert.Equal(t, "Petrov", *got.LastName)
}

func TestStorage_DeleteUser(t *testing.T) {
	st, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(st)
	factory.CreateRole(t, 1, "lead")
	userUID := factory.CreateUser(t, "testuser", "test@example.com", "hashedpassword", 1)
	factory.CreateRefreshToken(t, uuid.New().String(), userUID, "device-abc", false, time.Now().Add(time.Hour))

	err := st.DeleteUser(context.Background(), userUID)
	require.NoError(t, err)

	verification := NewTestVerification(st)
	verification.VerifyUserDeleted(t, userUID)

	var count int
	err = st.DB.QueryRow("SELECT COUNT(*) FROM refresh_tokens WHERE user_uid = $1", userUID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
