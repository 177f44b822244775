package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/patchpilot/patchpilot/internal/config"
	"github.com/patchpilot/patchpilot/internal/models"
	"github.com/patchpilot/patchpilot/internal/utils"
	"gorm.io/gorm"
)

var (
	errBadCredentials = errors.New("invalid username or password")
	errUserDisabled   = errors.New("user is disabled")
)

type AuthService struct {
	db        *gorm.DB
	jwtConfig *config.JWTConfig
	configSvc *SystemConfigService
}

func NewAuthService(db *gorm.DB, jwtCfg *config.JWTConfig) *AuthService {
	return &AuthService{
		db:        db,
		jwtConfig: jwtCfg,
		configSvc: NewSystemConfigService(db),
	}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenPair is an issued access/refresh token pair with expiry times.
type TokenPair struct {
	AccessToken     string
	AccessExpireAt  time.Time
	RefreshToken    string
	RefreshExpireAt time.Time
}

type LoginResult struct {
	TokenPair
	User *models.User
}

// clientInfo is recorded alongside refresh tokens for auditing.
type clientInfo struct {
	IP        string
	UserAgent string
}

// Login authenticates a user and issues an access/refresh token pair.
func (s *AuthService) Login(req *LoginRequest, clientIP, userAgent string) (*LoginResult, error) {
	var user models.User
	err := s.db.Where("username = ?", req.Username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errUserDisabled
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, errBadCredentials
	}

	pair, _, err := s.issueTokens(&user, clientInfo{IP: clientIP, UserAgent: userAgent}, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user.LastLogin = &now
	s.db.Save(&user)

	return &LoginResult{TokenPair: *pair, User: &user}, nil
}

// Refresh rotates a refresh token: the presented token is revoked and
// linked to its replacement, so reuse of a rotated token is detectable.
func (s *AuthService) Refresh(refreshToken string, clientIP, userAgent string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, errors.New("refresh token required")
	}

	var stored models.RefreshToken
	err := s.db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.New("invalid refresh token")
	}
	if err != nil {
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, errors.New("refresh token revoked")
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, errors.New("refresh token expired")
	}

	var user models.User
	if err := s.db.First(&user, stored.UserID).Error; err != nil {
		return nil, errors.New("user not found")
	}
	if !user.IsActive {
		return nil, errUserDisabled
	}

	pair, _, err := s.issueTokens(&user, clientInfo{IP: clientIP, UserAgent: userAgent}, &stored)
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// issueTokens creates an access token and a stored refresh token. When
// rotating, the old refresh token is revoked in the same transaction that
// stores its replacement.
func (s *AuthService) issueTokens(user *models.User, client clientInfo, rotating *models.RefreshToken) (*TokenPair, *models.RefreshToken, error) {
	accessHours := s.accessTokenHours()
	refreshHours := s.refreshTokenHours()

	accessToken, err := utils.GenerateToken(user.ID, user.Username, user.Role, accessHours)
	if err != nil {
		return nil, nil, err
	}

	refreshToken, refreshHash, err := newRefreshToken()
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	record := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   refreshHash,
		ExpiresAt:   now.Add(time.Duration(refreshHours) * time.Hour),
		CreatedByIP: client.IP,
		UserAgent:   client.UserAgent,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		if rotating == nil {
			return nil
		}
		return tx.Model(rotating).Updates(map[string]interface{}{
			"revoked_at":           now,
			"replaced_by_token_id": record.ID,
		}).Error
	})
	if err != nil {
		return nil, nil, err
	}

	return &TokenPair{
		AccessToken:     accessToken,
		AccessExpireAt:  now.Add(time.Duration(accessHours) * time.Hour),
		RefreshToken:    refreshToken,
		RefreshExpireAt: record.ExpiresAt,
	}, &record, nil
}

// RevokeRefreshToken marks the presented token revoked. Unknown tokens are
// a no-op so logout never fails.
func (s *AuthService) RevokeRefreshToken(refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", time.Now()).Error
}

func (s *AuthService) accessTokenHours() int {
	hours := s.configSvc.GetInt("auth_access_token_expire_hours", s.jwtConfig.ExpireHour)
	if hours <= 0 {
		return s.jwtConfig.ExpireHour
	}
	return hours
}

func (s *AuthService) refreshTokenHours() int {
	hours := s.configSvc.GetInt("auth_refresh_token_expire_hours", 720)
	if hours <= 0 {
		return 720
	}
	return hours
}

func newRefreshToken() (token string, tokenHash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateAdminIfNotExists seeds the initial admin account. The password must
// be changed after first login.
func (s *AuthService) CreateAdminIfNotExists() error {
	var count int64
	s.db.Model(&models.User{}).Where("role = ?", "admin").Count(&count)
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword("admin")
	if err != nil {
		return err
	}
	return s.db.Create(&models.User{
		Username: "admin",
		Password: hashed,
		Nickname: "Administrator",
		Role:     "admin",
		IsActive: true,
	}).Error
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (s *AuthService) ChangePassword(userID uint, req *ChangePasswordRequest) error {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return errors.New("user not found")
	}
	if !utils.CheckPassword(req.OldPassword, user.Password) {
		return errors.New("incorrect old password")
	}

	hashed, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.Password = hashed
	return s.db.Save(&user).Error
}
