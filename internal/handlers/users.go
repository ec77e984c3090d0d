package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"medlink-server/internal/models"
	"medlink-server/internal/utils"
)

// UserHandler handles user-related requests (typically admin operations).
type UserHandler struct {
	DB *gorm.DB
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(db *gorm.DB) *UserHandler {
	return &UserHandler{DB: db}
}

// CreateUserRequest represents the request body for creating a user by an admin.
type CreateUserRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=150"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Role      string `json:"role" binding:"required,oneof=admin doctor patient receptionist"`
}

// CreateUser handles creating a new user (admin).
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
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

	utils.Created(c, "User created successfully", user.Sanitize())
}

// GetUsers handles fetching all users (admin). An optional role query
// parameter narrows the list.
func (h *UserHandler) GetUsers(c *gin.Context) {
	q := h.DB.Order("username asc")
	if role := c.Query("role"); role != "" {
		if !models.Role(role).Valid() {
			utils.BadRequest(c, "Unknown role "+role)
			return
		}
		q = q.Where("role = ?", role)
	}

	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Users fetched successfully", sanitizeUsers(users))
}

// GetUserByID handles fetching a single user by ID (admin).
func (h *UserHandler) GetUserByID(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}
	utils.Success(c, "User fetched successfully", user.Sanitize())
}

// UpdateUserRequest represents the request body for updating a user by an admin.
type UpdateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email" binding:"omitempty,email"`
	IsActive  *bool  `json:"is_active"`
}

// UpdateUser handles updating a user by ID (admin). Roles are fixed at
// creation because each role owns a different profile.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" && req.Email != user.Email {
		var count int64
		if err := h.DB.Model(&models.User{}).Where("email = ? AND id <> ?", req.Email, user.ID).Count(&count).Error; err != nil {
			utils.HandleError(c, err)
			return
		}
		if count > 0 {
			utils.BadRequest(c, "New email is already in use")
			return
		}
		user.Email = req.Email
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := h.DB.Save(user).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "User updated successfully", user.Sanitize())
}

// DeleteUser handles deleting a user by ID (admin). Users that take part in
// appointment requests are deactivated instead so the history stays intact.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	var refs int64
	err := h.DB.Model(&models.AppointmentRequest{}).
		Where("patient_id = ? OR doctor_id = ?", user.ID, user.ID).
		Count(&refs).Error
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if refs > 0 {
		if err := h.DB.Model(user).Update("is_active", false).Error; err != nil {
			utils.HandleError(c, err)
			return
		}
		utils.Success(c, "User has appointment history and was deactivated", nil)
		return
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.RefreshToken{}, &models.PatientProfile{}, &models.DoctorProfile{}} {
			if err := tx.Where("user_id = ?", user.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.User{}, "id = ?", user.ID).Error
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "User deleted successfully", nil)
}

// GetPatients lists every patient. Accessible to doctors and staff.
func (h *UserHandler) GetPatients(c *gin.Context) {
	var patients []models.User
	if err := h.DB.Where("role = ? AND is_active = ?", models.RolePatient, true).Order("last_name asc").Find(&patients).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Patients fetched successfully", sanitizeUsers(patients))
}

func (h *UserHandler) loadUser(c *gin.Context) (*models.User, bool) {
	var user models.User
	if err := h.DB.First(&user, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.HandleError(c, err)
		}
		return nil, false
	}
	return &user, true
}

func sanitizeUsers(users []models.User) []models.UserSanitized {
	out := make([]models.UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out
}
