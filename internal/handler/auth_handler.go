package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/oscarfrank/saas-template-sub007/internal/model"
	"github.com/oscarfrank/saas-template-sub007/pkg/database"
	"github.com/oscarfrank/saas-template-sub007/pkg/jwtutil"
	"github.com/oscarfrank/saas-template-sub007/pkg/logger"
	"github.com/oscarfrank/saas-template-sub007/prometheus"
)

// Register creates a new user account and issues an email verification token
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	// Parse request
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		log.Warn("Invalid registration data", zap.Error(err))
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a valid email and a password of at least 8 characters are required"})
	}

	// Check if user already exists - track DB query
	defer prometheus.TrackDBOperation("query")(time.Now())
	var existingUser model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&existingUser)
	if result.Error == nil {
		log.Warn("User already exists", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	// Create new user
	user := model.User{
		Email:    req.Email,
		Password: string(hashedPassword),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	if result := database.GetDB().Create(&user); result.Error != nil {
		log.Error("Failed to create user", zap.Error(result.Error))
		prometheus.RecordAuthError("user_creation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	// Until a mailer is wired, the verification token is returned in the
	// response so clients can complete the flow.
	verificationToken, err := jwtutil.GenerateVerificationToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate verification token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("User registered", zap.String("email", user.Email))
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "User registered successfully, verification required",
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
		},
		"verification_token": verificationToken,
	})
}

// VerifyEmail confirms a user's email address from a verification token
func VerifyEmail(c echo.Context) error {
	log := logger.FromContext(c)

	token := c.QueryParam("token")
	if token == "" {
		prometheus.RecordAuthError("missing_verification_token")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}

	claims, err := jwtutil.ValidateVerificationToken(token)
	if err != nil {
		log.Warn("Invalid verification token", zap.Error(err))
		prometheus.RecordAuthError("invalid_verification_token")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	var user model.User
	if result := database.GetDB().First(&user, claims.UserID); result.Error != nil {
		log.Error("User not found for verification", zap.Uint("user_id", claims.UserID))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired token"})
	}

	if user.Verified() {
		return c.JSON(http.StatusOK, echo.Map{"message": "Email already verified"})
	}

	now := time.Now()
	if err := database.GetDB().Model(&user).Update("verified_at", now).Error; err != nil {
		log.Error("Failed to mark user verified", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "verification failed"})
	}

	log.Info("User verified email", zap.String("email", user.Email))
	return c.JSON(http.StatusOK, echo.Map{"message": "Email verified successfully"})
}

// Login authenticates a user and returns an access token
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	// Parse request
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	if err := c.Bind(&req); err != nil {
		log.Warn("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	// Find user in database - track DB operation duration
	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in", zap.String("email", user.Email))

	response := echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"email":    user.Email,
			"verified": user.Verified(),
		},
	}

	// Surface the last visited tenant so clients can land the user there.
	if user.TenantID != nil {
		var tenant model.Tenant
		if result := database.GetDB().Select("id", "slug", "name").First(&tenant, *user.TenantID); result.Error == nil {
			response["last_tenant"] = map[string]interface{}{
				"id":   tenant.ID,
				"slug": tenant.Slug,
				"name": tenant.Name,
			}
		}
	}

	return c.JSON(http.StatusOK, response)
}
