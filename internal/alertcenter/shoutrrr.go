package alertcenter

import (
	"context"
	"io"
	"log"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/notification"
)

// ShoutrrrTarget delivers fired alerts through shoutrrr service URLs.
// A single sender routes to all configured URLs.
type ShoutrrrTarget struct {
	name   string
	title  string
	sender *router.ServiceRouter
}

// NewShoutrrrTarget builds the sender and validates the service URLs.
// Construction errors never echo the URLs themselves, which may embed
// tokens or credentials.
func NewShoutrrrTarget(name, title string, urls []string, timeout time.Duration) (*ShoutrrrTarget, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one service URL is required").
			Component("alertcenter").
			Category(errors.CategoryValidation).
			Context("target", name).
			Build()
	}

	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryConfiguration).
			Context("target", name).
			Context("url_count", len(urls)).
			Build()
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrTarget{name: name, title: title, sender: sender}, nil
}

// Name returns the target name used in logs and metrics.
func (t *ShoutrrrTarget) Name() string { return t.name }

// Send pushes the alert body to every configured service URL.
func (t *ShoutrrrTarget) Send(ctx context.Context, alert notification.Alert) error {
	_ = ctx // the router applies its own per-send timeout

	params := stypes.Params{}
	if t.title != "" {
		params.SetTitle(t.title)
	}

	errs := t.sender.Send(alert.Body, &params)
	for _, err := range errs {
		if err != nil {
			return errors.New(err).
				Component("alertcenter").
				Category(errors.CategoryDelivery).
				Context("target", t.name).
				Context("key", alert.Key).
				Build()
		}
	}
	return nil
}
