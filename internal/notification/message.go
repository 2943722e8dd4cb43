package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/condosec/condowatch/internal/datastore/entities"
)

const messageHeader = "Condo Monitoring System"

// AlertLink returns the public URL for an alert, or "" when no public base
// is configured.
func AlertLink(base string, alertID uint) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/alert/%d", strings.TrimRight(base, "/"), alertID)
}

// ComposeAlertMessage renders the notification text for an alert. Initial
// sends and reminders differ only in the title line.
func ComposeAlertMessage(alert *entities.Alert, initial bool, linkBase string) string {
	title := "Reminder: Alert Still Active"
	if initial {
		title = "New Alert"
	}
	room := alert.Room
	if room == "" {
		room = "-"
	}

	lines := []string{
		messageHeader,
		title,
		fmt.Sprintf("Alert ID: #%d", alert.ID),
		"Type: " + alert.Type,
		"Area: " + room,
		"Level: " + alert.SeverityLabel(),
		"Status: " + alert.Status,
		"Time (UTC): " + alert.CreatedAt.UTC().Format(time.RFC3339),
	}
	if details := strings.TrimSpace(alert.Details); details != "" {
		lines = append(lines, "Notes: "+details)
	}
	if link := AlertLink(linkBase, alert.ID); link != "" {
		lines = append(lines, "Open Alert: "+link)
	}
	return strings.Join(lines, "\n")
}

// ComposeTestMessage renders the connectivity-test text.
func ComposeTestMessage(linkBase string) string {
	text := messageHeader + "\nNotification channel test is successful."
	if base := strings.TrimSpace(linkBase); base != "" {
		text += "\nDashboard: " + strings.TrimRight(base, "/") + "/dashboard"
	}
	return text
}
