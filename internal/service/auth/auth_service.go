// Package auth 提供登录认证、令牌签发校验和密码修改
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/weiwangfds/booknotes/config"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultTokenTTL 令牌默认有效期
const DefaultTokenTTL = 7 * 24 * time.Hour

// Claims JWT载荷
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service 认证服务接口
type Service interface {
	// Login 校验用户名密码并签发令牌
	Login(ctx context.Context, req *LoginRequest) (*LoginResult, error)

	// VerifyToken 校验令牌签名和有效期
	VerifyToken(tokenString string) (*Claims, error)

	// Me 获取当前用户信息
	Me(ctx context.Context, userID string) (*UserView, error)

	// ChangePassword 校验旧密码后修改密码，已签发的令牌在过期前仍然有效
	ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error

	// EnsureAdmin 管理员不存在时创建，返回是否新建
	EnsureAdmin(ctx context.Context, username, password string) (bool, error)
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" example:"admin"`
	Password string `json:"password" example:"admin123"`
}

// Validate 校验登录请求
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Validate 新密码至少6位，bcrypt 只使用前72字节
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OldPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, 72)),
	)
}

// UserView 用户信息，不包含密码
type UserView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Role     string `json:"role"`
}

// LoginResult 登录结果
type LoginResult struct {
	Token string    `json:"token"`
	User  *UserView `json:"user"`
}

// authService 认证服务实现
type authService struct {
	db        *gorm.DB
	secret    []byte
	ttl       time.Duration
	metrics   *metrics.Collector
	now       func() time.Time
	dummyHash []byte
}

// NewAuthService 创建认证服务实例
func NewAuthService(db *gorm.DB, cfg config.AuthConfig, collector *metrics.Collector) Service {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	// 用户不存在时也执行一次哈希比较，避免通过耗时判断用户名是否存在
	dummy, _ := bcrypt.GenerateFromPassword([]byte("booknotes-dummy-password"), bcrypt.DefaultCost)
	return &authService{
		db:        db,
		secret:    []byte(cfg.JWTSecret),
		ttl:       ttl,
		metrics:   collector,
		now:       time.Now,
		dummyHash: dummy,
	}
}

// Login 登录
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var user database.User
	err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}

	if err != nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		s.metrics.LoginAttempt(false)
		logger.WithField("username", req.Username).Warn("登录失败: 用户不存在")
		return nil, errors.ErrInvalidCredentialsErr
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		s.metrics.LoginAttempt(false)
		logger.WithField("username", req.Username).Warn("登录失败: 密码错误")
		return nil, errors.ErrInvalidCredentialsErr
	}

	token, err := s.issueToken(&user)
	if err != nil {
		return nil, errors.Internal(errors.ErrInternalServer, err)
	}

	s.metrics.LoginAttempt(true)
	logger.WithField("username", user.Username).Info("用户登录成功")
	return &LoginResult{Token: token, User: toView(&user)}, nil
}

// issueToken 签发HS256令牌
func (s *authService) issueToken(user *database.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken 校验令牌
func (s *authService) VerifyToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, errors.ErrUnauthorizedAccess.WithDetails("missing token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		switch {
		case stderrors.Is(err, jwt.ErrTokenExpired):
			return nil, errors.ErrUnauthorizedAccess.WithDetails("token has expired")
		case stderrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, errors.ErrUnauthorizedAccess.WithDetails("invalid token signature")
		default:
			return nil, errors.ErrUnauthorizedAccess.WithDetails("invalid token")
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.ErrUnauthorizedAccess.WithDetails("invalid token claims")
	}
	return claims, nil
}

// Me 获取当前用户
func (s *authService) Me(ctx context.Context, userID string) (*UserView, error) {
	user, err := s.findUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toView(user), nil
}

// ChangePassword 修改密码
func (s *authService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	if err := common.Validate(req); err != nil {
		return err
	}

	user, err := s.findUser(ctx, userID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)) != nil {
		return errors.ErrInvalidCredentialsErr.WithDetails("old password mismatch")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Internal(errors.ErrInternalServer, err)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password", string(hash)).Error; err != nil {
		return errors.Internal(errors.ErrDatabaseUpdate, err)
	}

	logger.WithField("user_id", userID).Info("密码已修改")
	return nil
}

// EnsureAdmin 创建默认管理员
func (s *authService) EnsureAdmin(ctx context.Context, username, password string) (bool, error) {
	if err := common.Validate(LoginRequest{Username: username, Password: password}); err != nil {
		return false, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&database.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, errors.Internal(errors.ErrInternalServer, err)
	}
	user := &database.User{Username: username, PasswordHash: string(hash), Role: database.RoleAdmin}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return false, common.DBError(errors.ErrDatabaseInsert, "User", err)
	}

	logger.WithField("username", username).Info("管理员账号已创建")
	return true, nil
}

// findUser 令牌中的用户已被删除时视为未授权
func (s *authService) findUser(ctx context.Context, userID string) (*database.User, error) {
	var user database.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUnauthorizedAccess.WithDetails("user no longer exists")
		}
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	return &user, nil
}

func toView(user *database.User) *UserView {
	return &UserView{
		ID:       user.ID,
		Username: user.Username,
		Avatar:   user.Avatar,
		Role:     user.Role,
	}
}
