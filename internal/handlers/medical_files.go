package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"medlink-server/internal/access"
	"medlink-server/internal/config"
	"medlink-server/internal/middleware"
	"medlink-server/internal/models"
	"medlink-server/internal/utils"
)

// MedicalFileHandler handles documents attached to a patient's record.
type MedicalFileHandler struct {
	DB       *gorm.DB
	MaxBytes int64
}

// NewMedicalFileHandler creates a new MedicalFileHandler.
func NewMedicalFileHandler(db *gorm.DB, cfg *config.Config) *MedicalFileHandler {
	return &MedicalFileHandler{DB: db, MaxBytes: int64(cfg.MaxUploadMB) << 20}
}

// Upload stores a file in a patient's record. Patients upload into their own
// record; doctors and staff name the patient with the patient_id form field.
func (h *MedicalFileHandler) Upload(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	// readUpload installs the body limit, so it runs before any other form access.
	file, ok := readUpload(c, "file", h.MaxBytes)
	if !ok {
		return
	}

	patientID := actor.ID
	if actor.Role != models.RolePatient {
		patientID = c.PostForm("patient_id")
		if !utils.IsUUID(patientID) {
			utils.BadRequest(c, "patient_id is required and must be a UUID")
			return
		}
		var patient models.User
		if err := h.DB.Where("id = ? AND role = ?", patientID, models.RolePatient).First(&patient).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				utils.NotFound(c, "Patient not found")
			} else {
				utils.HandleError(c, err)
			}
			return
		}
	}

	record := models.MedicalFile{
		PatientID:    patientID,
		UploadedByID: actor.ID,
		FileName:     file.Name,
		ContentType:  file.ContentType,
		Size:         int64(len(file.Data)),
		Data:         file.Data,
		Description:  c.PostForm("description"),
	}
	if err := h.DB.Create(&record).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, "Medical file uploaded successfully", record)
}

// List returns medical files. Patients only see their own record; doctors and
// staff may narrow by patient_id.
func (h *MedicalFileHandler) List(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	q := h.DB.Omit("data").Order("created_at desc")
	if actor.Role == models.RolePatient {
		q = q.Where("patient_id = ?", actor.ID)
	} else if patientID := c.Query("patient_id"); patientID != "" {
		q = q.Where("patient_id = ?", patientID)
	}

	var files []models.MedicalFile
	if err := q.Find(&files).Error; err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Medical files fetched successfully", files)
}

// Get returns the metadata of a medical file.
func (h *MedicalFileHandler) Get(c *gin.Context) {
	file, ok := h.loadVisible(c, h.DB.Omit("data"))
	if !ok {
		return
	}
	utils.Success(c, "Medical file fetched successfully", file)
}

// Download streams the file contents.
func (h *MedicalFileHandler) Download(c *gin.Context) {
	file, ok := h.loadVisible(c, h.DB)
	if !ok {
		return
	}
	serveFile(c, file.FileName, file.ContentType, file.Data)
}

// UpdateMedicalFileRequest carries the editable metadata of a medical file.
type UpdateMedicalFileRequest struct {
	Description string `json:"description" binding:"max=1000"`
}

// Update changes a medical file's description. Only its patient or an admin
// may edit it.
func (h *MedicalFileHandler) Update(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	var req UpdateMedicalFileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	file, ok := h.load(c, h.DB.Omit("data"))
	if !ok {
		return
	}
	if !access.CanManage(actor, file) {
		utils.Forbidden(c, "You do not have permission to edit this file")
		return
	}

	if err := h.DB.Model(&models.MedicalFile{}).Where("id = ?", file.ID).Update("description", req.Description).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	file.Description = req.Description
	utils.Success(c, "Medical file updated successfully", file)
}

// Delete removes a medical file. Only its patient or an admin may delete it.
func (h *MedicalFileHandler) Delete(c *gin.Context) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return
	}

	file, ok := h.load(c, h.DB.Omit("data"))
	if !ok {
		return
	}
	if !access.CanManage(actor, file) {
		utils.Forbidden(c, "You do not have permission to delete this file")
		return
	}

	if err := h.DB.Delete(&models.MedicalFile{}, "id = ?", file.ID).Error; err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Medical file deleted successfully", nil)
}

func (h *MedicalFileHandler) loadVisible(c *gin.Context, q *gorm.DB) (*models.MedicalFile, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		return nil, false
	}

	file, ok := h.load(c, q)
	if !ok {
		return nil, false
	}
	if !access.CanView(actor, file) {
		utils.Forbidden(c, "You do not have permission to view this file")
		return nil, false
	}
	return file, true
}

func (h *MedicalFileHandler) load(c *gin.Context, q *gorm.DB) (*models.MedicalFile, bool) {
	var file models.MedicalFile
	if err := q.First(&file, "id = ?", c.Param("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Medical file not found")
		} else {
			utils.HandleError(c, err)
		}
		return nil, false
	}
	return &file, true
}
