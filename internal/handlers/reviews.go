package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"medlink-server/internal/apperr"
	"medlink-server/internal/middleware"
	"medlink-server/internal/models"
	"medlink-server/internal/utils"
)

// ReviewHandler handles patient reviews of doctors.
type ReviewHandler struct {
	DB *gorm.DB
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(db *gorm.DB) *ReviewHandler {
	return &ReviewHandler{DB: db}
}

// CreateReviewRequest is the body of POST /reviews.
type CreateReviewRequest struct {
	DoctorID string `json:"doctor_id" binding:"required,uuid"`
	Rating   int    `json:"rating" binding:"required,min=1,max=5"`
	Comment  string `json:"comment"`
}

// CreateReview stores a patient's review and refreshes the doctor's rating in
// the same transaction.
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}
	if actor.Role != models.RolePatient {
		utils.HandleError(c, apperr.Authorization("patients_only", "only patients can review doctors"))
		return
	}

	var req CreateReviewRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var review models.Review
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var profile models.DoctorProfile
		if err := tx.Where("user_id = ?", req.DoctorID).First(&profile).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("doctor_not_found", "doctor "+req.DoctorID+" not found")
			}
			return err
		}

		review = models.Review{
			DoctorProfileID: profile.ID,
			PatientID:       actor.ID,
			Rating:          req.Rating,
			Comment:         req.Comment,
		}
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		return models.RecomputeDoctorRating(tx, profile.ID)
	})
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, "Review submitted successfully", review)
}

// ListReviews returns reviews. Patients see their own, doctors see reviews of
// themselves, staff see everything. doctor_id narrows the list for patients
// and staff.
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	q := h.DB.Model(&models.Review{}).Order("reviews.created_at desc")
	doctorID := c.Query("doctor_id")
	switch actor.Role {
	case models.RolePatient:
		q = q.Where("reviews.patient_id = ?", actor.ID)
	case models.RoleDoctor:
		doctorID = actor.ID
	}
	if doctorID != "" {
		q = q.Joins("JOIN doctor_profiles ON doctor_profiles.id = reviews.doctor_profile_id").
			Where("doctor_profiles.user_id = ?", doctorID)
	}

	var reviews []models.Review
	if err := q.Find(&reviews).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Reviews fetched successfully", reviews)
}
