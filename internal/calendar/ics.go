package calendar

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/alveusgg/sanctuary/internal/db"
)

// EventDuration is the length given to timed events on external calendars
const EventDuration = time.Hour

// WriteICS renders events as an iCalendar feed. Date-only events become
// all-day events on their date in loc.
func WriteICS(w io.Writer, name string, events []*db.CalendarEvent, loc *time.Location) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//Alveus Sanctuary//Calendar//EN")
	cal.SetName(name)
	cal.SetXWRTimezone(loc.String())
	cal.SetRefreshInterval("PT1H")

	for _, ev := range events {
		vev := cal.AddEvent(ev.ID.String() + "@alveussanctuary.org")
		vev.SetSummary(ev.Title)
		if ev.Description != nil {
			vev.SetDescription(*ev.Description)
		}
		vev.SetURL(ev.Link)
		vev.SetProperty(ical.ComponentPropertyCategories, ev.Category)
		vev.SetDtStampTime(ev.UpdatedAt)
		vev.SetCreatedTime(ev.CreatedAt)
		vev.SetModifiedAt(ev.UpdatedAt)

		if ev.HasTime {
			vev.SetStartAt(ev.StartAt)
			vev.SetEndAt(ev.StartAt.Add(EventDuration))
			continue
		}

		day := ev.StartAt.In(loc)
		vev.SetAllDayStartAt(day)
		vev.SetAllDayEndAt(day.AddDate(0, 0, 1))
	}

	if _, err := io.WriteString(w, cal.Serialize()); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}
