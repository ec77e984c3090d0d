package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"medlink-server/internal/models"
)

func TestCanView(t *testing.T) {
	file := &models.MedicalFile{PatientID: "p1"}
	req := &models.AppointmentRequest{PatientID: "p1", DoctorID: "d1"}

	tests := []struct {
		name   string
		actor  models.Actor
		record interface{}
		want   bool
	}{
		{"owner reads own file", models.Actor{ID: "p1", Role: models.RolePatient}, file, true},
		{"other patient denied file", models.Actor{ID: "p2", Role: models.RolePatient}, file, false},
		{"doctor reads patient file", models.Actor{ID: "d9", Role: models.RoleDoctor}, file, true},
		{"receptionist reads file", models.Actor{ID: "r1", Role: models.RoleReceptionist}, file, true},
		{"patient participant", models.Actor{ID: "p1", Role: models.RolePatient}, req, true},
		{"doctor participant", models.Actor{ID: "d1", Role: models.RoleDoctor}, req, true},
		{"unrelated doctor denied request", models.Actor{ID: "d2", Role: models.RoleDoctor}, req, false},
		{"admin reads request", models.Actor{ID: "a1", Role: models.RoleAdmin}, req, true},
		{"unknown record denied", models.Actor{ID: "p1", Role: models.RolePatient}, struct{}{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanView(tt.actor, tt.record))
		})
	}
}

func TestCanManage(t *testing.T) {
	file := &models.MedicalFile{PatientID: "p1"}
	thread := &models.ChatThread{Participants: []models.User{{BaseModel: models.BaseModel{ID: "p1"}}, {BaseModel: models.BaseModel{ID: "d1"}}}}

	assert.True(t, CanManage(models.Actor{ID: "p1", Role: models.RolePatient}, file))
	assert.False(t, CanManage(models.Actor{ID: "d1", Role: models.RoleDoctor}, file))
	assert.False(t, CanManage(models.Actor{ID: "r1", Role: models.RoleReceptionist}, file))
	assert.True(t, CanManage(models.Actor{ID: "a1", Role: models.RoleAdmin}, file))

	assert.True(t, CanManage(models.Actor{ID: "d1", Role: models.RoleDoctor}, thread))
	assert.False(t, CanManage(models.Actor{ID: "d2", Role: models.RoleDoctor}, thread))
}

func TestIsOwner_EmptyIDNeverMatches(t *testing.T) {
	assert.False(t, IsOwner(models.Actor{}, &models.MedicalFile{}))
	assert.False(t, IsParticipant(models.Actor{}, &models.AppointmentRequest{}))
}
