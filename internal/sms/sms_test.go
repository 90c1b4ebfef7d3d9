package sms

import (
	"context"
	"strings"
	"testing"
)

func TestCanonicalizePhone(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  string
		expectErr bool
	}{
		{"plain digits", "15551234567", "15551234567", false},
		{"e164 format", "+15551234567", "15551234567", false},
		{"formatted", "+1 (555) 123-4567", "15551234567", false},
		{"dots and spaces", "555.123.4567", "5551234567", false},
		{"minimum length", "123456", "123456", false},
		{"too short", "12345", "", true},
		{"no digits", "not a number", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalizePhone(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("CanonicalizePhone(%q) expected error, got %q", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("CanonicalizePhone(%q) failed: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("CanonicalizePhone(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// captureSender records the last message for assertions.
type captureSender struct {
	to   string
	body string
}

func (c *captureSender) SendMessage(ctx context.Context, to string, body string) error {
	c.to = to
	c.body = body
	return nil
}

func TestSendOTPCode(t *testing.T) {
	sender := &captureSender{}
	if err := SendOTPCode(context.Background(), sender, "15551234567", "123456"); err != nil {
		t.Fatalf("SendOTPCode failed: %v", err)
	}
	if sender.to != "15551234567" {
		t.Errorf("expected recipient 15551234567, got %s", sender.to)
	}
	if !strings.Contains(sender.body, "123456") {
		t.Errorf("message body should contain the code: %q", sender.body)
	}
}

func TestConsoleSender(t *testing.T) {
	if err := (ConsoleSender{}).SendMessage(context.Background(), "15551234567", "hello"); err != nil {
		t.Errorf("ConsoleSender should never fail: %v", err)
	}
}
