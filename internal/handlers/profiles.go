package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medlink-server/internal/middleware"
	"medlink-server/internal/models"
	"medlink-server/internal/scheduling"
	"medlink-server/internal/utils"
)

// ProfileHandler serves patient and doctor profiles, the doctor directory
// and the specialization catalogue.
type ProfileHandler struct {
	DB *gorm.DB
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(db *gorm.DB) *ProfileHandler {
	return &ProfileHandler{DB: db}
}

// ProfileFields are the contact details shared by both profile kinds.
type ProfileFields struct {
	PhoneNumber    *string `json:"phone_number" binding:"omitempty,max=15"`
	Address        *string `json:"address"`
	DateOfBirth    *string `json:"date_of_birth"`
	ProfilePicture *string `json:"profile_picture" binding:"omitempty,max=255"`
	Gender         *string `json:"gender" binding:"omitempty,oneof=male female"`
	Bio            *string `json:"bio"`
}

// UpdatePatientProfileRequest is the body of PUT /profiles/patient.
type UpdatePatientProfileRequest struct {
	ProfileFields
}

// UpdateDoctorProfileRequest is the body of PUT /profiles/doctor.
type UpdateDoctorProfileRequest struct {
	ProfileFields
	Qualifications  *string `json:"qualifications"`
	ExperienceYears *int    `json:"experience_years" binding:"omitempty,min=0,max=80"`
}

// updates turns the set fields into a column map.
func (f ProfileFields) updates() (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if f.PhoneNumber != nil {
		out["phone_number"] = *f.PhoneNumber
	}
	if f.Address != nil {
		out["address"] = *f.Address
	}
	if f.DateOfBirth != nil {
		dob, err := scheduling.ParseDate(*f.DateOfBirth)
		if err != nil {
			return nil, err
		}
		out["date_of_birth"] = dob
	}
	if f.ProfilePicture != nil {
		out["profile_picture"] = *f.ProfilePicture
	}
	if f.Gender != nil {
		out["gender"] = *f.Gender
	}
	if f.Bio != nil {
		out["bio"] = *f.Bio
	}
	return out, nil
}

// GetPatientProfile returns the caller's patient profile.
func (h *ProfileHandler) GetPatientProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var profile models.PatientProfile
	if !h.loadProfile(c, h.DB.Preload("User"), &profile, userID) {
		return
	}
	utils.Success(c, "Patient profile fetched successfully", profile)
}

// UpdatePatientProfile updates the caller's patient profile.
func (h *ProfileHandler) UpdatePatientProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var req UpdatePatientProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	updates, err := req.updates()
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	var profile models.PatientProfile
	if !h.loadProfile(c, h.DB, &profile, userID) {
		return
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&profile).Updates(updates).Error; err != nil {
			utils.HandleError(c, err)
			return
		}
	}
	if !h.loadProfile(c, h.DB.Preload("User"), &profile, userID) {
		return
	}

	utils.Success(c, "Patient profile updated successfully", profile)
}

// GetDoctorProfile returns the caller's doctor profile.
func (h *ProfileHandler) GetDoctorProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var profile models.DoctorProfile
	if !h.loadProfile(c, h.doctorQuery(), &profile, userID) {
		return
	}
	utils.Success(c, "Doctor profile fetched successfully", profile)
}

// UpdateDoctorProfile updates the caller's doctor profile. Rating and review
// count are derived from reviews and cannot be set.
func (h *ProfileHandler) UpdateDoctorProfile(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var req UpdateDoctorProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	updates, err := req.updates()
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	if req.Qualifications != nil {
		updates["qualifications"] = *req.Qualifications
	}
	if req.ExperienceYears != nil {
		updates["experience_years"] = *req.ExperienceYears
	}

	var profile models.DoctorProfile
	if !h.loadProfile(c, h.DB, &profile, userID) {
		return
	}
	if len(updates) > 0 {
		if err := h.DB.Model(&profile).Updates(updates).Error; err != nil {
			utils.HandleError(c, err)
			return
		}
	}
	if !h.loadProfile(c, h.doctorQuery(), &profile, userID) {
		return
	}

	utils.Success(c, "Doctor profile updated successfully", profile)
}

// ListDoctors returns active doctors. specialization filters by
// specialization id, search matches names case-insensitively.
func (h *ProfileHandler) ListDoctors(c *gin.Context) {
	q := h.doctorQuery().
		Joins("JOIN users ON users.id = doctor_profiles.user_id").
		Where("users.is_active = ?", true)

	if spec := c.Query("specialization"); spec != "" {
		q = q.Where("doctor_profiles.id IN (?)",
			h.DB.Model(&models.DoctorSpecialization{}).Select("doctor_profile_id").Where("specialization_id = ?", spec))
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ? OR LOWER(users.username) LIKE ?", like, like, like)
	}

	var doctors []models.DoctorProfile
	if err := q.Order("doctor_profiles.rating desc").Find(&doctors).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Doctors fetched successfully", doctors)
}

// GetDoctor returns a doctor profile by the doctor's user id.
func (h *ProfileHandler) GetDoctor(c *gin.Context) {
	var profile models.DoctorProfile
	if !h.loadProfile(c, h.doctorQuery(), &profile, c.Param("id")) {
		return
	}
	utils.Success(c, "Doctor fetched successfully", profile)
}

// ListSpecializations returns the specialization catalogue.
func (h *ProfileHandler) ListSpecializations(c *gin.Context) {
	var specs []models.Specialization
	if err := h.DB.Order("name asc").Find(&specs).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specializations fetched successfully", specs)
}

// SpecializationRequest is the body of specialization create and update.
type SpecializationRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

// CreateSpecialization adds a specialization (admin).
func (h *ProfileHandler) CreateSpecialization(c *gin.Context) {
	var req SpecializationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var count int64
	if err := h.DB.Model(&models.Specialization{}).Where("name = ?", req.Name).Count(&count).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	if count > 0 {
		utils.BadRequest(c, "Specialization already exists")
		return
	}

	spec := models.Specialization{Name: req.Name, Description: req.Description}
	if err := h.DB.Create(&spec).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Created(c, "Specialization created successfully", spec)
}

// UpdateSpecialization renames or describes a specialization (admin).
func (h *ProfileHandler) UpdateSpecialization(c *gin.Context) {
	var req SpecializationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var spec models.Specialization
	if !h.loadSpecialization(c, c.Param("id"), &spec) {
		return
	}

	var count int64
	if err := h.DB.Model(&models.Specialization{}).Where("name = ? AND id <> ?", req.Name, spec.ID).Count(&count).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	if count > 0 {
		utils.BadRequest(c, "Specialization already exists")
		return
	}

	spec.Name = req.Name
	spec.Description = req.Description
	if err := h.DB.Save(&spec).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specialization updated successfully", spec)
}

// DeleteSpecialization removes a specialization and its doctor links (admin).
func (h *ProfileHandler) DeleteSpecialization(c *gin.Context) {
	var spec models.Specialization
	if !h.loadSpecialization(c, c.Param("id"), &spec) {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("specialization_id = ?", spec.ID).Delete(&models.DoctorSpecialization{}).Error; err != nil {
			return err
		}
		return tx.Delete(&spec).Error
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Specialization deleted successfully", nil)
}

// AssignSpecializationRequest is the body of a doctor's self-assignment.
type AssignSpecializationRequest struct {
	SpecializationID string `json:"specialization_id" binding:"required,uuid"`
	ExperienceYears  int    `json:"experience_years" binding:"min=0,max=80"`
}

// AssignSpecialization links a specialization to the calling doctor. Assigning
// the same specialization again updates the experience years.
func (h *ProfileHandler) AssignSpecialization(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var req AssignSpecializationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var spec models.Specialization
	if !h.loadSpecialization(c, req.SpecializationID, &spec) {
		return
	}
	var profile models.DoctorProfile
	if !h.loadProfile(c, h.DB, &profile, userID) {
		return
	}

	link := models.DoctorSpecialization{
		DoctorProfileID:  profile.ID,
		SpecializationID: spec.ID,
		ExperienceYears:  req.ExperienceYears,
	}
	err := h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doctor_profile_id"}, {Name: "specialization_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"experience_years", "updated_at"}),
	}).Omit(clause.Associations).Create(&link).Error
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	if !h.loadProfile(c, h.doctorQuery(), &profile, userID) {
		return
	}
	utils.Created(c, "Specialization assigned successfully", profile)
}

func (h *ProfileHandler) doctorQuery() *gorm.DB {
	return h.DB.Preload("User").Preload("Specializations.Specialization")
}

// loadProfile loads the profile owned by userID into dest.
func (h *ProfileHandler) loadProfile(c *gin.Context, q *gorm.DB, dest interface{}, userID string) bool {
	if err := q.Where("user_id = ?", userID).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Profile not found")
		} else {
			utils.HandleError(c, err)
		}
		return false
	}
	return true
}

func (h *ProfileHandler) loadSpecialization(c *gin.Context, id string, dest *models.Specialization) bool {
	if err := h.DB.First(dest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Specialization not found")
		} else {
			utils.HandleError(c, err)
		}
		return false
	}
	return true
}
