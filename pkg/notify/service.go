package notify

import (
	"context"
	"fmt"
)

// Service formats the marketplace's transactional messages and hands them to
// the configured transports.
type Service struct {
	email Sender
	sms   Sender
}

func NewService(email, sms Sender) *Service {
	return &Service{email: email, sms: sms}
}

// SendEmail delivers a raw email through the email transport.
func (s *Service) SendEmail(ctx context.Context, to, subject, body string) error {
	return s.email.Send(ctx, Message{To: to, Subject: subject, Body: body})
}

// SendSMS delivers a raw text through the SMS transport.
func (s *Service) SendSMS(ctx context.Context, phone, body string) error {
	return s.sms.Send(ctx, Message{To: phone, Body: body})
}

// NotifyRunnerOfNewErrand pings a runner about a new errand near them.
func (s *Service) NotifyRunnerOfNewErrand(ctx context.Context, phone, errandType string, distanceKm float64) error {
	body := fmt.Sprintf("New errand available near you! Type: %s, Distance: %.1fkm", errandType, distanceKm)
	return s.SendSMS(ctx, phone, body)
}

// NotifyAcceptance tells the customer their errand was picked up.
func (s *Service) NotifyAcceptance(ctx context.Context, customerPhone, runnerFirstName string) error {
	body := fmt.Sprintf("Your errand has been accepted by %s. They will contact you shortly.", runnerFirstName)
	return s.SendSMS(ctx, customerPhone, body)
}

// NotifyProgress tells the customer the errand is underway with an ETA.
func (s *Service) NotifyProgress(ctx context.Context, customerPhone string, etaMinutes int) error {
	body := fmt.Sprintf("Your errand is in progress. Estimated arrival in %d minutes.", etaMinutes)
	return s.SendSMS(ctx, customerPhone, body)
}

// NotifyCompletion asks the customer to rate the finished errand.
func (s *Service) NotifyCompletion(ctx context.Context, customerPhone string) error {
	return s.SendSMS(ctx, customerPhone, "Your errand has been completed. Please rate your experience.")
}

// NotifyCancellation tells a party the errand was cancelled and why.
func (s *Service) NotifyCancellation(ctx context.Context, phone, reason string) error {
	body := fmt.Sprintf("The errand has been cancelled. Reason: %s", reason)
	return s.SendSMS(ctx, phone, body)
}

// SendVerificationEmail carries the address-verification link.
func (s *Service) SendVerificationEmail(ctx context.Context, email, verificationURL string) error {
	body := fmt.Sprintf("Please click on the following link to verify your email: %s", verificationURL)
	return s.SendEmail(ctx, email, "Verify your email address", body)
}

// SendOTP texts a one-time phone verification code.
func (s *Service) SendOTP(ctx context.Context, phone, code string) error {
	return s.SendSMS(ctx, phone, fmt.Sprintf("Your verification code is: %s", code))
}

// SendPasswordReset carries the password reset link.
func (s *Service) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	body := fmt.Sprintf("Click on the following link to reset your password: %s", resetURL)
	return s.SendEmail(ctx, email, "Password Reset", body)
}
