package notify

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/familycabin/cabin/internal/application"
	"github.com/familycabin/cabin/internal/calendar"
)

// DefaultSendTimeout bounds a single delivery attempt.
const DefaultSendTimeout = 30 * time.Second

// Dispatcher turns swap notifications into emails and delivers them in the
// background. It implements application.Notifier.
type Dispatcher struct {
	mailer    Mailer
	publicURL string
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. publicURL is the externally reachable
// base used for the accept and decline links.
func NewDispatcher(mailer Mailer, publicURL string, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Dispatcher{
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		timeout:   timeout,
		logger:    logger.With("component", "notify"),
	}
}

// NotifySwap renders the email for notification and sends it asynchronously.
// Failures are logged.
func (d *Dispatcher) NotifySwap(ctx context.Context, notification application.SwapNotification) {
	if d == nil || d.mailer == nil {
		return
	}
	logger := d.logger.With("swap_id", notification.Swap.ID, "event", string(notification.Event))

	msg, ok := d.compose(notification)
	if !ok {
		logger.WarnContext(ctx, "swap notification skipped, recipient has no email")
		return
	}
	subject, body, err := render(notification.Event, msg.data)
	if err != nil {
		logger.ErrorContext(ctx, "failed to render swap email", "error", err)
		return
	}

	// The request that triggered the notification may finish first.
	sendCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(sendCtx, d.timeout)
		defer cancel()
		if err := d.mailer.Send(ctx, Message{To: msg.to, Subject: subject, HTML: body}); err != nil {
			logger.ErrorContext(ctx, "failed to send swap email", "error", err)
			return
		}
		logger.InfoContext(ctx, "swap email sent")
	}()
}

// Wait blocks until every queued email has been attempted.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

type composed struct {
	to   string
	data emailData
}

func (d *Dispatcher) compose(n application.SwapNotification) (composed, bool) {
	data := emailData{
		Message:        n.Swap.Message,
		OfferedDates:   formatStay(n.RequesterReservation.Dates),
		RequestedDates: formatStay(n.TargetReservation.Dates),
		ExpiresAt:      n.Swap.ExpiresAt.UTC().Format("Mon Jan 2, 15:04 MST"),
	}

	// Requests and withdrawals go to the target; outcomes go back to the
	// requester.
	recipient, actor := n.Target, n.Requester
	if n.Event == application.SwapEventAccepted || n.Event == application.SwapEventDeclined {
		recipient, actor = n.Requester, n.Target
	}
	if recipient.Email == "" {
		return composed{}, false
	}
	data.RecipientName = recipient.DisplayName
	data.ActorName = actor.DisplayName

	if n.Event == application.SwapEventRequested {
		data.AcceptURL = d.responseURL(n.Swap.Token, "accept")
		data.DeclineURL = d.responseURL(n.Swap.Token, "decline")
	}
	return composed{to: recipient.Email, data: data}, true
}

func (d *Dispatcher) responseURL(token, action string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("action", action)
	return d.publicURL + "/swap-response?" + q.Encode()
}

func formatStay(r calendar.Range) string {
	if r.Start.IsZero() {
		return ""
	}
	if r.SingleDay() {
		return r.Start.Time().Format("Mon Jan 2, 2006")
	}
	return r.Start.Time().Format("Mon Jan 2") + " to " + r.End.Time().Format("Mon Jan 2, 2006")
}
