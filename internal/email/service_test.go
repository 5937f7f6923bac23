package email

import (
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "owner@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "owner@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderContactNotificationTemplate(t *testing.T) {
	data := ContactNotificationData{
		SenderName:  "Jamie",
		SenderEmail: "jamie@example.com",
		Subject:     "Collaboration",
		Message:     "I liked your writeup on caching.",
	}

	html, err := renderTemplate(contactNotificationTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Jamie") {
		t.Error("template should contain sender name")
	}
	if !strings.Contains(html, "jamie@example.com") {
		t.Error("template should contain sender email")
	}
	if !strings.Contains(html, "I liked your writeup on caching.") {
		t.Error("template should contain the message body")
	}
}

func TestRenderContactReplyTemplate(t *testing.T) {
	data := ContactReplyData{
		SenderName:      "Jamie",
		OriginalMessage: "I liked your writeup on caching.",
		Reply:           "Thanks, glad it helped!",
	}

	html, err := renderTemplate(contactReplyTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "Hi Jamie") {
		t.Error("template should greet the sender")
	}
	if !strings.Contains(html, "Thanks, glad it helped!") {
		t.Error("template should contain the reply")
	}
	if !strings.Contains(html, "I liked your writeup on caching.") {
		t.Error("template should quote the original message")
	}
}
