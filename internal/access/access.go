// Package access decides whether an actor may read or change a record,
// based on the capability interfaces the record implements.
package access

import (
	"medlink-server/internal/models"
)

// IsParticipant reports whether the actor is one of the record's participants.
func IsParticipant(actor models.Actor, p models.Participated) bool {
	for _, id := range p.ParticipantIDs() {
		if id != "" && id == actor.ID {
			return true
		}
	}
	return false
}

// IsOwner reports whether the actor owns the record.
func IsOwner(actor models.Actor, o models.Owned) bool {
	return o.OwnerID() != "" && o.OwnerID() == actor.ID
}

// CanView reports whether the actor may read the record. Staff (admin and
// receptionist) read everything; doctors additionally read owned records
// such as patient files.
func CanView(actor models.Actor, record interface{}) bool {
	if actor.Role.IsStaff() {
		return true
	}
	switch r := record.(type) {
	case models.Participated:
		return IsParticipant(actor, r)
	case models.Owned:
		return actor.Role == models.RoleDoctor || IsOwner(actor, r)
	}
	return false
}

// CanManage reports whether the actor may modify or delete the record. Only
// admins bypass ownership.
func CanManage(actor models.Actor, record interface{}) bool {
	if actor.Role == models.RoleAdmin {
		return true
	}
	switch r := record.(type) {
	case models.Participated:
		return IsParticipant(actor, r)
	case models.Owned:
		return IsOwner(actor, r)
	}
	return false
}
