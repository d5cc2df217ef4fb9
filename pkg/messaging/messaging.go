// Package messaging defines the outbound email and SMS collaborators used by
// step execution. Senders report failure through the result value and never
// return an error for delivery problems; an error return means the call itself
// could not be made.
package messaging

import "context"

// SendResult is the outcome of one send attempt. Simulated is set when no
// provider is configured and the message was logged instead of delivered.
type SendResult struct {
	Success   bool   `json:"success"`
	Simulated bool   `json:"simulated,omitempty"`
	ID        string `json:"id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EmailMessage is a rendered email ready for delivery.
type EmailMessage struct {
	To      string `json:"to"`
	From    string `json:"from,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SMSMessage is a rendered SMS ready for delivery. To must be in E.164 form.
type SMSMessage struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// EmailSender delivers email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, message EmailMessage) SendResult
}

// SMSSender delivers SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, message SMSMessage) SendResult
}
