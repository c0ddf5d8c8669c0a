package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/amberline/amberline-api/config"
	"github.com/amberline/amberline-api/databases"
	"github.com/amberline/amberline-api/models"
	templates "github.com/amberline/amberline-api/templates/html"
)

// Scheduler handles periodic background jobs for the moderation surface
type Scheduler struct {
	cron *cron.Cron
	Conf *config.Config
	UDB  databases.UserDatabase
	NDB  databases.ModNotificationDatabase
}

// NewScheduler creates a new scheduler instance
func NewScheduler(conf *config.Config, uDB databases.UserDatabase, nDB databases.ModNotificationDatabase) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(time.UTC)),
		Conf: conf,
		UDB:  uDB,
		NDB:  nDB,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Clear lapsed mutes and temporary bans every 10 minutes. Admission
	// already ignores expired windows; this keeps profiles tidy.
	_, err := s.cron.AddFunc("*/10 * * * *", s.sweepLapsedRestrictions)
	if err != nil {
		zap.S().Errorw("failed to register restriction sweep job", "error", err)
	}

	// Escalate unresolved high-priority alerts by email every 15 minutes.
	_, err = s.cron.AddFunc("*/15 * * * *", s.escalateCriticalAlerts)
	if err != nil {
		zap.S().Errorw("failed to register critical alert job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Moderation scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Moderation scheduler stopped")
}

func (s *Scheduler) sweepLapsedRestrictions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	now := time.Now()

	muteRes, err := s.UDB.UpdateMany(ctx,
		bson.M{"user.chatMuteUntil": bson.M{"$lt": now}},
		bson.M{"$unset": bson.M{"user.chatMuteUntil": "", "user.chatMuteReason": ""}},
	)
	if err != nil {
		zap.S().Errorw("failed to clear lapsed mutes", "error", err)
		return
	}

	banRes, err := s.UDB.UpdateMany(ctx,
		bson.M{
			"user.bannedUntil":  bson.M{"$lt": now},
			"user.banPermanent": bson.M{"$ne": true},
		},
		bson.M{"$unset": bson.M{"user.bannedUntil": "", "user.banReason": ""}},
	)
	if err != nil {
		zap.S().Errorw("failed to clear lapsed bans", "error", err)
		return
	}

	if muteRes.ModifiedCount > 0 || banRes.ModifiedCount > 0 {
		zap.S().Infow("Restriction sweep complete",
			"mutesCleared", muteRes.ModifiedCount,
			"bansCleared", banRes.ModifiedCount,
		)
	}
}

func (s *Scheduler) escalateCriticalAlerts() {
	if s.Conf.ModAlertEmail == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	filter := bson.M{
		"priority":    models.PriorityHigh,
		"status":      bson.M{"$ne": models.NotificationResolved},
		"escalatedAt": nil,
	}
	alerts, err := s.NDB.Find(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to find critical alerts", "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}

	var lines []string
	for _, a := range alerts {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", a.Type, a.Title, a.Preview))
	}
	body := fmt.Sprintf("%d unresolved high-priority moderation alerts need attention:\n\n%s",
		len(alerts), strings.Join(lines, "\n"))

	subject := "Moderation alerts need attention"
	if err := s.sendEmail(s.Conf.ModAlertEmail, "Moderation Team", subject,
		templates.RenderGenericEmail(subject, body), body); err != nil {
		zap.S().Errorw("failed to send critical alert digest", "error", err)
		return
	}

	// Stamp so the next run only mails fresh alerts.
	if _, err := s.NDB.UpdateMany(ctx, filter,
		bson.M{"$set": bson.M{"escalatedAt": time.Now()}}); err != nil {
		zap.S().Errorw("failed to stamp escalated alerts", "error", err)
	}

	zap.S().Infow("Critical alert digest sent", "alerts", len(alerts))
}

func (s *Scheduler) sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	from := mail.NewEmail("Amberline", "no-reply@amberline.org")
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(s.Conf.SendgridKey)
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}
