package models

// MedicalFile is a document uploaded into a patient's record
type MedicalFile struct {
	BaseModel
	PatientID    string `gorm:"size:36;not null;index" json:"patient_id"`
	UploadedByID string `gorm:"size:36;not null" json:"uploaded_by_id"`
	FileName     string `gorm:"size:255;not null" json:"file_name"`
	ContentType  string `gorm:"size:100;not null" json:"content_type"`
	Size         int64  `gorm:"not null" json:"size"`
	Data         []byte `gorm:"not null" json:"-"` // served through the download endpoint only
	Description  string `gorm:"type:text" json:"description,omitempty"`
}

// OwnerID implements Owned.
func (f *MedicalFile) OwnerID() string { return f.PatientID }
