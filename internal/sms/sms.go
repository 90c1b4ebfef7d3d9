// Package sms wraps the Twilio API for delivering one-time verification
// codes over SMS.
package sms

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
)

// OTPMessageTemplate is the text sent with a verification code.
const OTPMessageTemplate = "Your Symposic verification code is: %s. This code expires in 10 minutes."

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Sender defines a pluggable SMS delivery abstraction.
type Sender interface {
	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error
}

// CanonicalizePhone validates and canonicalizes a phone number by stripping
// all non-numeric characters. The result must have at least 6 digits.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if recipient != canonical {
		slog.Debug("CanonicalizePhone modified recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// SendOTPCode formats and sends a one-time code to the given phone number.
func SendOTPCode(ctx context.Context, sender Sender, phone, code string) error {
	return sender.SendMessage(ctx, phone, fmt.Sprintf(OTPMessageTemplate, code))
}

// ConsoleSender logs messages instead of sending them. Used in development
// when no Twilio credentials are configured.
type ConsoleSender struct{}

// SendMessage logs the message body at info level.
func (ConsoleSender) SendMessage(ctx context.Context, to string, body string) error {
	slog.Info("ConsoleSender.SendMessage: would send SMS", "to", to, "body", body)
	return nil
}
