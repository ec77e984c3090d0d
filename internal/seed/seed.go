// Package seed loads demo data for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"medlink-server/internal/chat"
	"medlink-server/internal/logger"
	"medlink-server/internal/models"
	"medlink-server/internal/scheduling"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "demo1234"

var specializations = []models.Specialization{
	{Name: "General Practice", Description: "Primary care and general health"},
	{Name: "Cardiology", Description: "Heart and blood vessels"},
	{Name: "Dermatology", Description: "Skin, hair and nails"},
	{Name: "Pediatrics", Description: "Care for infants and children"},
	{Name: "Neurology", Description: "Brain and nervous system"},
}

type demoUser struct {
	username  string
	firstName string
	lastName  string
	role      models.Role
}

var demoUsers = []demoUser{
	{"admin", "Ada", "Admin", models.RoleAdmin},
	{"reception", "Rita", "Desk", models.RoleReceptionist},
	{"dr.house", "Gregory", "House", models.RoleDoctor},
	{"dr.grey", "Meredith", "Grey", models.RoleDoctor},
	{"john", "John", "Doe", models.RolePatient},
	{"jane", "Jane", "Roe", models.RolePatient},
}

// Result summarizes what Run created.
type Result struct {
	Users        map[string]*models.User
	Requests     []*models.AppointmentRequest
	Appointments []*models.Appointment
	Thread       *models.ChatThread
}

// Run seeds db. It refuses to run twice so existing data is never mixed with
// demo rows.
func Run(ctx context.Context, db *gorm.DB, svc *scheduling.Service, chatSvc *chat.Service, log *logger.Logger, now time.Time) (*Result, error) {
	entry := log.WithComponent("seed")

	var existing int64
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", demoUsers[0].username).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("check existing demo data: %w", err)
	}
	if existing > 0 {
		return nil, errors.New("demo data already present")
	}

	res := &Result{Users: make(map[string]*models.User, len(demoUsers))}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range specializations {
			spec := specializations[i]
			if err := tx.Create(&spec).Error; err != nil {
				return fmt.Errorf("create specialization %s: %w", spec.Name, err)
			}
		}

		for _, du := range demoUsers {
			user := &models.User{
				Username:  du.username,
				Email:     du.username + "@medlink.local",
				FirstName: du.firstName,
				LastName:  du.lastName,
				Role:      du.role,
				IsActive:  true,
			}
			if err := user.SetPassword(DemoPassword); err != nil {
				return err
			}
			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("create user %s: %w", du.username, err)
			}
			if err := models.CreateProfileFor(tx, user); err != nil {
				return fmt.Errorf("create profile for %s: %w", du.username, err)
			}
			res.Users[du.username] = user
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	entry.WithField("users", len(res.Users)).Info("Seeded users and specializations")

	john := res.Users["john"].Actor()
	jane := res.Users["jane"].Actor()
	house := res.Users["dr.house"].Actor()
	grey := res.Users["dr.grey"].Actor()
	day := scheduling.StartOfDay(now).AddDate(0, 0, 3)

	requests := []struct {
		patient models.Actor
		in      scheduling.CreateRequestInput
	}{
		{john, scheduling.CreateRequestInput{DoctorID: house.ID, PreferredDate: day, PreferredTimeSlot: models.SlotMorning, Reason: "Persistent headache", UrgencyLevel: models.UrgencyMedium}},
		{jane, scheduling.CreateRequestInput{DoctorID: house.ID, PreferredDate: day, PreferredTimeSlot: models.SlotAfternoon, Reason: "Annual check-up", UrgencyLevel: models.UrgencyLow}},
		{john, scheduling.CreateRequestInput{DoctorID: grey.ID, PreferredDate: day.AddDate(0, 0, 1), PreferredTimeSlot: models.SlotEvening, Reason: "Follow-up on lab results", UrgencyLevel: models.UrgencyHigh}},
	}
	for _, r := range requests {
		req, err := svc.CreateRequest(ctx, r.patient, r.in)
		if err != nil {
			return nil, fmt.Errorf("seed appointment request: %w", err)
		}
		res.Requests = append(res.Requests, req)
	}

	// Accept the first two so the demo has booked slots on the same day.
	for i, start := range []string{"09:00", "14:30"} {
		at := day.Format("2006-01-02") + "T" + start + ":00Z"
		apt, err := svc.Accept(ctx, house, res.Requests[i].ID, scheduling.AcceptInput{ScheduledTime: at})
		if err != nil {
			return nil, fmt.Errorf("seed appointment: %w", err)
		}
		res.Appointments = append(res.Appointments, apt)
	}

	thread, err := chatSvc.CreateThread(ctx, john, []string{house.ID})
	if err != nil {
		return nil, fmt.Errorf("seed chat thread: %w", err)
	}
	if _, err := chatSvc.PostMessage(ctx, john, thread.ID, chat.MessageInput{Type: models.MessageText, Text: "Hello doctor, see you on " + day.Format("Jan 2") + "."}); err != nil {
		return nil, fmt.Errorf("seed chat message: %w", err)
	}
	res.Thread = thread

	entry.WithFields(logrus.Fields{
		"requests":     len(res.Requests),
		"appointments": len(res.Appointments),
	}).Info("Seeded appointment workflow and chat")
	return res, nil
}
