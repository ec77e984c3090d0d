package models

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// Gender of a patient or doctor.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// PatientProfile holds the patient-facing details of a user.
type PatientProfile struct {
	BaseModel
	UserID         string     `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	PhoneNumber    string     `gorm:"size:15" json:"phone_number,omitempty"`
	Address        string     `gorm:"type:text" json:"address,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	ProfilePicture string     `gorm:"size:255" json:"profile_picture,omitempty"`
	Gender         Gender     `gorm:"size:10" json:"gender,omitempty"`
	Bio            string     `gorm:"type:text" json:"bio,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// OwnerID implements Owned.
func (p *PatientProfile) OwnerID() string { return p.UserID }

// DoctorProfile holds the public details of a doctor.
type DoctorProfile struct {
	BaseModel
	UserID          string     `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	PhoneNumber     string     `gorm:"size:15" json:"phone_number,omitempty"`
	Address         string     `gorm:"type:text" json:"address,omitempty"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	ProfilePicture  string     `gorm:"size:255" json:"profile_picture,omitempty"`
	Gender          Gender     `gorm:"size:10" json:"gender,omitempty"`
	Qualifications  string     `gorm:"type:text" json:"qualifications,omitempty"`
	ExperienceYears int        `json:"experience_years"`
	Bio             string     `gorm:"type:text" json:"bio,omitempty"`
	Rating          float64    `json:"rating"`
	ReviewCount     int        `json:"review_count"`

	User            *User                  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Specializations []DoctorSpecialization `gorm:"foreignKey:DoctorProfileID" json:"specializations,omitempty"`
}

// OwnerID implements Owned.
func (p *DoctorProfile) OwnerID() string { return p.UserID }

// Specialization is a medical field a doctor can practice.
type Specialization struct {
	BaseModel
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`
}

// DoctorSpecialization links a doctor profile to a specialization.
type DoctorSpecialization struct {
	BaseModel
	DoctorProfileID  string `gorm:"size:36;not null;uniqueIndex:idx_doctor_specialization" json:"doctor_profile_id"`
	SpecializationID string `gorm:"size:36;not null;uniqueIndex:idx_doctor_specialization" json:"specialization_id"`
	ExperienceYears  int    `json:"experience_years"`

	Specialization *Specialization `gorm:"foreignKey:SpecializationID" json:"specialization,omitempty"`
}

// Review is a patient's rating of a doctor.
type Review struct {
	BaseModel
	DoctorProfileID string `gorm:"size:36;not null;index" json:"doctor_profile_id"`
	PatientID       string `gorm:"size:36;not null;index" json:"patient_id"`
	Rating          int    `gorm:"not null" json:"rating"`
	Comment         string `gorm:"type:text" json:"comment,omitempty"`
}

// OwnerID implements Owned.
func (r *Review) OwnerID() string { return r.PatientID }

// CreateProfileFor creates the role-specific profile of a freshly created
// user. Roles without a profile are a no-op.
func CreateProfileFor(tx *gorm.DB, user *User) error {
	switch user.Role {
	case RolePatient:
		return tx.Create(&PatientProfile{UserID: user.ID}).Error
	case RoleDoctor:
		return tx.Create(&DoctorProfile{UserID: user.ID}).Error
	}
	return nil
}

// RecomputeDoctorRating recalculates the doctor's average rating and review
// count from the reviews table. Call it in the same transaction that wrote
// the review.
func RecomputeDoctorRating(tx *gorm.DB, doctorProfileID string) error {
	var agg struct {
		ReviewTotal int64
		ReviewCount int64
	}
	err := tx.Model(&Review{}).
		Select("COALESCE(SUM(rating), 0) AS review_total, COUNT(*) AS review_count").
		Where("doctor_profile_id = ?", doctorProfileID).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("aggregate reviews: %w", err)
	}

	rating := 0.0
	if agg.ReviewCount > 0 {
		rating = math.Round(float64(agg.ReviewTotal)/float64(agg.ReviewCount)*100) / 100
	}

	return tx.Model(&DoctorProfile{}).
		Where("id = ?", doctorProfileID).
		Updates(map[string]interface{}{"rating": rating, "review_count": agg.ReviewCount}).Error
}
