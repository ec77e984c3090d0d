package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"medlink-server/internal/config"
	"medlink-server/internal/logger"
	"medlink-server/internal/middleware"
	"medlink-server/internal/models"
	"medlink-server/internal/utils"
)

const refreshCookie = "refresh_token"

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	DB  *gorm.DB
	Cfg *config.Config
	Log *logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, log *logger.Logger) *AuthHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &AuthHandler{DB: db, Cfg: cfg, Log: log}
}

// RegisterRequest represents the request body for user registration.
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=150"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"omitempty,oneof=patient doctor"`
}

// Register handles user registration. Self-registration is limited to
// patients and doctors; staff accounts are created by an admin.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if req.Role == "" {
		req.Role = string(models.RolePatient)
	}

	taken, err := credentialsTaken(h.DB, req.Username, req.Email, "")
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if taken {
		utils.BadRequest(c, "User with this username or email already exists")
		return
	}

	user := models.User{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      models.Role(req.Role),
		IsActive:  true,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.HandleError(c, err)
		return
	}

	if err := createUserWithProfile(h.DB, &user); err != nil {
		utils.HandleError(c, err)
		return
	}

	h.Log.Audit(user.ID, "register", "user/"+user.ID, true, map[string]interface{}{"role": user.Role})
	utils.Created(c, "User registered successfully", user.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the response body for successful login.
type LoginResponse struct {
	AccessToken  string               `json:"access_token"`
	RefreshToken string               `json:"refresh_token"`
	User         models.UserSanitized `json:"user"`
}

// Login handles user login. The username field also accepts an email.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.Where("username = ? OR email = ?", req.Username, req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Invalid username or password")
		} else {
			utils.HandleError(c, err)
		}
		return
	}

	if !user.CheckPassword(req.Password) {
		h.Log.WithUserID(user.ID).Warn("Failed login attempt")
		utils.Unauthorized(c, "Invalid username or password")
		return
	}
	if !user.IsActive {
		utils.Forbidden(c, "Account is disabled")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(&user)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	utils.Success(c, "Login successful", LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user.Sanitize(),
	})
}

// RefreshTokenRequest represents the request body for token refresh.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshTokenResponse represents the response body for successful token refresh.
type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RefreshToken exchanges a refresh token for a new token pair. The old
// refresh token is revoked.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookie)
	if err != nil || token == "" {
		var req RefreshTokenRequest
		if !utils.BindAndValidate(c, &req) {
			return
		}
		token = req.RefreshToken
	}

	claims, err := utils.ValidateToken(token, h.Cfg.JWTRefreshSecret)
	if err != nil {
		utils.Unauthorized(c, "Invalid refresh token")
		return
	}

	var stored models.RefreshToken
	if err := h.DB.Where("token = ? AND user_id = ?", token, claims.UserID).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		} else {
			utils.HandleError(c, err)
		}
		return
	}
	if !stored.Usable(time.Now()) {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Unauthorized(c, "User no longer exists")
		} else {
			utils.HandleError(c, err)
		}
		return
	}

	// Rotate: the presented token can never be used again.
	res := h.DB.Model(&models.RefreshToken{}).
		Where("id = ? AND is_revoked = ?", stored.ID, false).
		Update("is_revoked", true)
	if res.Error != nil {
		utils.HandleError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.Unauthorized(c, "Refresh token not found, expired, or revoked")
		return
	}

	accessToken, refreshToken, err := h.issueTokens(&user)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	h.setRefreshCookie(c, refreshToken)
	utils.Success(c, "Access token refreshed successfully", RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// LogoutRequest represents the request body for user logout.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the caller's refresh token. An unknown or already revoked
// token still logs out successfully.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req LogoutRequest
	if c.Request.ContentLength > 0 && !utils.BindAndValidate(c, &req) {
		return
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}
	if token == "" {
		utils.BadRequest(c, "Refresh token is required")
		return
	}

	err := h.DB.Model(&models.RefreshToken{}).
		Where("token = ? AND user_id = ? AND is_revoked = ?", token, userID, false).
		Updates(map[string]interface{}{"is_revoked": true, "expires_at": time.Now().UTC()}).Error
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	c.SetCookie(refreshCookie, "", -1, "/", "", !h.Cfg.IsDevelopment(), true)
	utils.Success(c, "Logout successful", nil)
}

// GetProfile handles fetching the currently authenticated user's account.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User profile not found")
		} else {
			utils.HandleError(c, err)
		}
		return
	}

	utils.Success(c, "Profile fetched successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating the account.
type UpdateProfileRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=15"`
}

// UpdateProfile handles updating the currently authenticated user's account.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.HandleError(c, err)
		}
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}

	if err := h.DB.Save(&user).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Profile updated successfully", user.Sanitize())
}

// issueTokens signs a token pair and stores the refresh token.
func (h *AuthHandler) issueTokens(user *models.User) (string, string, error) {
	accessToken, refreshToken, err := utils.GenerateTokens(user, h.Cfg)
	if err != nil {
		return "", "", err
	}

	stored := models.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().UTC().Add(utils.RefreshTokenTTL(h.Cfg)),
	}
	if err := h.DB.Create(&stored).Error; err != nil {
		return "", "", err
	}

	h.Log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Debug("Issued token pair")
	return accessToken, refreshToken, nil
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	maxAge := int(utils.RefreshTokenTTL(h.Cfg).Seconds())
	c.SetCookie(refreshCookie, token, maxAge, "/", "", !h.Cfg.IsDevelopment(), true)
}

// credentialsTaken reports whether username or email belongs to a user other
// than exceptID.
func credentialsTaken(db *gorm.DB, username, email, exceptID string) (bool, error) {
	q := db.Model(&models.User{}).Where("username = ? OR email = ?", username, email)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// createUserWithProfile inserts the user and its role profile atomically.
func createUserWithProfile(db *gorm.DB, user *models.User) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return models.CreateProfileFor(tx, user)
	})
}
