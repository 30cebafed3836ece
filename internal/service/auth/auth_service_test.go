package auth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/config"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"gorm.io/gorm"
)

const testSecret = "test-secret-0123456789"

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Init(config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

func setupTestService(t *testing.T) (*authService, *gorm.DB) {
	db := setupTestDB(t)
	svc := NewAuthService(db, config.AuthConfig{JWTSecret: testSecret}, nil).(*authService)
	created, err := svc.EnsureAdmin(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	require.True(t, created)
	return svc, db
}

func errCode(t *testing.T, err error) errors.ErrorCode {
	appErr, ok := errors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

func TestLogin(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	t.Run("登录成功", func(t *testing.T) {
		result, err := svc.Login(ctx, &LoginRequest{Username: "admin", Password: "admin123"})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Token)
		assert.Equal(t, "admin", result.User.Username)
		assert.Equal(t, database.RoleAdmin, result.User.Role)

		claims, err := svc.VerifyToken(result.Token)
		require.NoError(t, err)
		assert.Equal(t, result.User.ID, claims.UserID)
		assert.Equal(t, "admin", claims.Username)
		assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
	})

	t.Run("密码错误", func(t *testing.T) {
		result, err := svc.Login(ctx, &LoginRequest{Username: "admin", Password: "wrong"})
		assert.Nil(t, result)
		assert.Equal(t, errors.ErrInvalidCredentials, errCode(t, err))
	})

	t.Run("用户不存在", func(t *testing.T) {
		_, err := svc.Login(ctx, &LoginRequest{Username: "ghost", Password: "admin123"})
		assert.Equal(t, errors.ErrInvalidCredentials, errCode(t, err))
	})

	t.Run("参数为空", func(t *testing.T) {
		_, err := svc.Login(ctx, &LoginRequest{Username: "admin"})
		assert.Equal(t, errors.ErrInvalidParams, errCode(t, err))
	})
}

func TestVerifyToken(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	result, err := svc.Login(ctx, &LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)

	t.Run("过期令牌", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
		defer func() { svc.now = time.Now }()

		_, err := svc.VerifyToken(result.Token)
		assert.Equal(t, errors.ErrUnauthorized, errCode(t, err))
	})

	t.Run("签名错误", func(t *testing.T) {
		other := NewAuthService(setupTestDB(t), config.AuthConfig{JWTSecret: "another-secret-0123456789"}, nil)
		_, err := other.VerifyToken(result.Token)
		assert.Equal(t, errors.ErrUnauthorized, errCode(t, err))
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := svc.VerifyToken("not-a-token")
		assert.Equal(t, errors.ErrUnauthorized, errCode(t, err))
		_, err = svc.VerifyToken("")
		assert.Equal(t, errors.ErrUnauthorized, errCode(t, err))
	})

	t.Run("拒绝none算法", func(t *testing.T) {
		claims := &Claims{UserID: "x", RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.VerifyToken(unsigned)
		assert.Equal(t, errors.ErrUnauthorized, errCode(t, err))
	})
}

func TestChangePassword(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	result, err := svc.Login(ctx, &LoginRequest{Username: "admin", Password: "admin123"})
	require.NoError(t, err)
	userID := result.User.ID

	t.Run("旧密码错误时不修改", func(t *testing.T) {
		err := svc.ChangePassword(ctx, userID, &ChangePasswordRequest{OldPassword: "bad", NewPassword: "newpass1"})
		assert.Equal(t, errors.ErrInvalidCredentials, errCode(t, err))

		_, err = svc.Login(ctx, &LoginRequest{Username: "admin", Password: "admin123"})
		assert.NoError(t, err)
	})

	t.Run("新密码太短", func(t *testing.T) {
		err := svc.ChangePassword(ctx, userID, &ChangePasswordRequest{OldPassword: "admin123", NewPassword: "123"})
		assert.Equal(t, errors.ErrInvalidParams, errCode(t, err))
	})

	t.Run("修改成功", func(t *testing.T) {
		require.NoError(t, svc.ChangePassword(ctx, userID, &ChangePasswordRequest{OldPassword: "admin123", NewPassword: "newpass1"}))

		_, err := svc.Login(ctx, &LoginRequest{Username: "admin", Password: "admin123"})
		assert.Error(t, err)
		_, err = svc.Login(ctx, &LoginRequest{Username: "admin", Password: "newpass1"})
		assert.NoError(t, err)

		// 已签发的令牌在过期前仍然有效
		_, err = svc.VerifyToken(result.Token)
		assert.NoError(t, err)
	})
}

func TestMeAndEnsureAdmin(t *testing.T) {
	svc, db := setupTestService(t)
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "admin", "other-password")
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&database.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var user database.User
	require.NoError(t, db.First(&user).Error)
	assert.NotEqual(t, "admin123", user.PasswordHash)

	view, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin", view.Username)

	_, err = svc.Me(ctx, "missing")
	assert.Equal(t, errors.ErrUnauthorized, errCode(t, err))
}
