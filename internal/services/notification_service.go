package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/saeid-a/ConsultBookBack/internal/logging"
	"github.com/saeid-a/ConsultBookBack/internal/models"
	"github.com/saeid-a/ConsultBookBack/internal/repository"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var emailTemplateFS embed.FS

const (
	TemplateBookingReceived  = "booking_received"
	TemplateAdminNewBooking  = "admin_new_booking"
	TemplateBookingConfirmed = "booking_confirmed"
	TemplateBookingCancelled = "booking_cancelled"
	TemplateBookingReminder  = "booking_reminder"
)

var emailTemplateNames = []string{
	TemplateBookingReceived,
	TemplateAdminNewBooking,
	TemplateBookingConfirmed,
	TemplateBookingCancelled,
	TemplateBookingReminder,
}

type emailLogWriter interface {
	CreateEmailLog(ctx context.Context, input repository.CreateEmailLogInput) error
}

type reminderStore interface {
	ListDueReminders(ctx context.Context, from, to time.Time) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

type NotificationSettings struct {
	BusinessName   string
	AdminEmail     string
	Currency       string
	Location       *time.Location
	ReminderWindow time.Duration
}

type NotificationService struct {
	mailer    Mailer
	logs      emailLogWriter
	reminders reminderStore
	types     consultationTypeReader
	templates map[string]*template.Template
	settings  NotificationSettings
	logger    *zap.Logger
}

func NewNotificationService(
	mailer Mailer,
	logs emailLogWriter,
	reminders reminderStore,
	types consultationTypeReader,
	settings NotificationSettings,
	logger *zap.Logger,
) (*NotificationService, error) {
	templates, err := loadEmailTemplates()
	if err != nil {
		return nil, err
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.ReminderWindow <= 0 {
		settings.ReminderWindow = 24 * time.Hour
	}
	return &NotificationService{
		mailer:    mailer,
		logs:      logs,
		reminders: reminders,
		types:     types,
		templates: templates,
		settings:  settings,
		logger:    logging.OrNop(logger),
	}, nil
}

func loadEmailTemplates() (map[string]*template.Template, error) {
	templates := make(map[string]*template.Template, len(emailTemplateNames))
	for _, name := range emailTemplateNames {
		tmpl, err := template.ParseFS(emailTemplateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse email template %s: %w", name, err)
		}
		templates[name] = tmpl
	}
	return templates, nil
}

type emailData struct {
	BusinessName string
	Booking      *models.Booking
	TypeName     string
	StartsAt     string
	TimeZone     string
	Amount       string
}

func (s *NotificationService) BookingReceived(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error {
	return s.send(ctx, booking, ctype, booking.CustomerEmail, TemplateBookingReceived,
		"We received your booking "+booking.ReferenceNumber)
}

func (s *NotificationService) AdminNewBooking(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error {
	if s.settings.AdminEmail == "" {
		return nil
	}
	return s.send(ctx, booking, ctype, s.settings.AdminEmail, TemplateAdminNewBooking,
		"New booking "+booking.ReferenceNumber)
}

func (s *NotificationService) BookingConfirmed(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error {
	return s.send(ctx, booking, ctype, booking.CustomerEmail, TemplateBookingConfirmed,
		"Your booking "+booking.ReferenceNumber+" is confirmed")
}

func (s *NotificationService) BookingCancelled(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error {
	return s.send(ctx, booking, ctype, booking.CustomerEmail, TemplateBookingCancelled,
		"Your booking "+booking.ReferenceNumber+" was cancelled")
}

func (s *NotificationService) BookingReminder(ctx context.Context, booking *models.Booking, ctype *models.ConsultationType) error {
	return s.send(ctx, booking, ctype, booking.CustomerEmail, TemplateBookingReminder,
		"Reminder: your consultation "+booking.ReferenceNumber)
}

// SendDueReminders mails confirmed bookings that start within the reminder
// window and have not been reminded yet. It returns how many were sent.
func (s *NotificationService) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	local := now.In(s.settings.Location)
	due, err := s.reminders.ListDueReminders(ctx, local, local.Add(s.settings.ReminderWindow))
	if err != nil {
		return 0, err
	}

	sent := 0
	for i := range due {
		booking := &due[i]
		ctype, err := s.types.GetByID(ctx, booking.ConsultationTypeID)
		if err != nil && !repository.IsNotFound(err) {
			return sent, err
		}
		if err := s.BookingReminder(ctx, booking, ctype); err != nil {
			continue
		}
		if err := s.reminders.MarkReminderSent(ctx, booking.ID); err != nil {
			return sent, err
		}
		sent++
	}
	if sent > 0 {
		s.logger.Info("booking reminders sent", zap.Int("count", sent))
	}
	return sent, nil
}

// Render builds the HTML body for a template without sending it.
func (s *NotificationService) Render(name string, booking *models.Booking, ctype *models.ConsultationType) (string, error) {
	tmpl, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown email template %q", name)
	}

	data := emailData{
		BusinessName: s.settings.BusinessName,
		Booking:      booking,
		TypeName:     "Consultation",
		TimeZone:     s.settings.Location.String(),
	}
	if ctype != nil {
		data.TypeName = ctype.Name
	}
	if start, err := BookingStart(booking, s.settings.Location); err == nil {
		data.StartsAt = start.Format("Monday, January 2, 2006 at 15:04")
	} else {
		data.StartsAt = booking.BookingDate + " " + booking.BookingTime
	}
	if booking.PaymentAmount > 0 {
		data.Amount = fmt.Sprintf("%.2f %s", booking.PaymentAmount, strings.ToUpper(s.settings.Currency))
	}

	var body bytes.Buffer
	if err := tmpl.ExecuteTemplate(&body, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return body.String(), nil
}

func (s *NotificationService) send(
	ctx context.Context,
	booking *models.Booking,
	ctype *models.ConsultationType,
	to, templateName, subject string,
) error {
	if s.mailer == nil {
		s.logger.Debug("mail disabled, skipping email", zap.String("template", templateName), zap.Int64("booking_id", booking.ID))
		return nil
	}
	if s.settings.BusinessName != "" {
		subject = s.settings.BusinessName + ": " + subject
	}

	html, err := s.Render(templateName, booking, ctype)
	if err == nil {
		err = s.mailer.Send(ctx, MailMessage{To: to, Subject: subject, HTML: html})
	}

	entry := repository.CreateEmailLogInput{
		BookingID: &booking.ID,
		Recipient: to,
		Subject:   subject,
		Template:  templateName,
		Status:    models.EmailStatusSent,
	}
	if err != nil {
		message := err.Error()
		entry.Status = models.EmailStatusFailed
		entry.ErrorMessage = &message
		s.logger.Error("email delivery failed",
			zap.String("template", templateName),
			zap.Int64("booking_id", booking.ID),
			zap.Error(err),
		)
	}
	if s.logs != nil {
		if logErr := s.logs.CreateEmailLog(context.WithoutCancel(ctx), entry); logErr != nil {
			s.logger.Error("failed to write email log", zap.Error(logErr))
		}
	}
	return err
}
