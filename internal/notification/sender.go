// Package notification delivers escalating alert notifications. One
// background scheduler polls the active alerts and walks each one through
// the reminder schedule, logging every attempt to the audit trail.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/condosec/condowatch/internal/errors"
)

// Sender pushes one message to one destination. Errors are transport
// category and feed the fail-retry backoff.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Channel pairs a sender with the name recorded on its attempt rows.
type Channel struct {
	Name   string
	Sender Sender
}

// shoutrrrSender delivers through a single shoutrrr service URL.
type shoutrrrSender struct {
	router *router.ServiceRouter
}

func (s *shoutrrrSender) Send(_ context.Context, text string) error {
	for _, err := range s.router.Send(text, &types.Params{}) {
		if err != nil {
			return errors.New(err).Category(errors.CategoryTransport).Build()
		}
	}
	return nil
}

// NewChannels builds one channel per configured shoutrrr URL. The channel
// name is the service scheme in upper case ("telegram://..." becomes
// TELEGRAM), suffixed with an index when the same service appears twice.
func NewChannels(urls []string, timeout time.Duration) ([]Channel, error) {
	channels := make([]Channel, 0, len(urls))
	seen := map[string]int{}
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		sender, err := shoutrrr.CreateSender(u)
		if err != nil {
			return nil, errors.New(fmt.Errorf("failed to create notification sender: %w", err)).
				Category(errors.CategoryValidation).
				Build()
		}
		sender.Timeout = timeout

		name := channelName(u)
		seen[name]++
		if seen[name] > 1 {
			name = fmt.Sprintf("%s-%d", name, seen[name])
		}
		channels = append(channels, Channel{Name: name, Sender: &shoutrrrSender{router: sender}})
	}
	return channels, nil
}

func channelName(serviceURL string) string {
	scheme, _, found := strings.Cut(serviceURL, "://")
	if !found || scheme == "" {
		return "NOTIFY"
	}
	return strings.ToUpper(scheme)
}
