// Package feed exports reservations as an iCalendar subscription.
package feed

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/familycabin/cabin/internal/application"
)

const productID = "-//familycabin//cabin reservations//EN"

// Options controls feed metadata.
type Options struct {
	// Name is shown by calendar clients as the subscription title.
	Name string
	// UIDDomain qualifies event UIDs so they stay unique across feeds.
	UIDDomain string
	// Now stamps events that carry no update time.
	Now time.Time
}

// Build renders one all-day event per reservation. Reservation ranges are
// inclusive, so DTEND is the day after the last day.
func Build(reservations []application.ReservationView, opts Options) *ical.Calendar {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = "Cabin reservations"
	}
	domain := strings.TrimSpace(opts.UIDDomain)
	if domain == "" {
		domain = "cabin.local"
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(name)

	for _, r := range reservations {
		event := cal.AddEvent(fmt.Sprintf("%s@%s", r.ID, domain))
		stamp := r.UpdatedAt
		if stamp.IsZero() {
			stamp = now
		}
		event.SetDtStampTime(stamp.UTC())
		if !r.CreatedAt.IsZero() {
			event.SetCreatedTime(r.CreatedAt.UTC())
		}
		event.SetAllDayStartAt(r.Dates.Start.Time())
		event.SetAllDayEndAt(r.Dates.End.AddDays(1).Time())
		event.SetSummary(Summary(r))
		if notes := strings.TrimSpace(r.Notes); notes != "" {
			event.SetDescription(notes)
		}
		event.SetProperty(ical.ComponentPropertyTransp, "TRANSPARENT")
	}
	return cal
}

// Summary is the event title for a reservation.
func Summary(r application.ReservationView) string {
	owner := strings.TrimSpace(r.OwnerDisplayName)
	if owner == "" {
		owner = strings.TrimSpace(r.OwnerName)
	}
	if owner == "" {
		owner = "Someone"
	}
	return owner + " at the cabin"
}

// Write serializes the feed to w.
func Write(w io.Writer, reservations []application.ReservationView, opts Options) error {
	_, err := io.WriteString(w, Build(reservations, opts).Serialize())
	return err
}
