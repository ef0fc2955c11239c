package calendar

import "time"

// RegularEvent is a template instantiated on every matching weekday
type RegularEvent struct {
	Title       string
	Description string
	Category    string
	Link        string
	// HasTime is false for date-only events, Hour and Minute are ignored then
	HasTime bool
	Hour    int
	Minute  int
}

const (
	CategoryRegularStream = "Alveus Regular Stream"
	CategorySpecialStream = "Alveus Special Stream"
	CategoryMayaVideo     = "Maya YouTube Video"
)

var animalCareChats = RegularEvent{
	Title:       "Animal Care Chats",
	Description: "Join animal care staff as they carry out their daily tasks and answer your questions.",
	Category:    CategoryRegularStream,
	Link:        "https://twitch.tv/AlveusSanctuary",
	HasTime:     true,
	Hour:        14,
	Minute:      30,
}

// Monday first
var eventsByWeekday = [7][]RegularEvent{
	{animalCareChats},
	{animalCareChats},
	{
		{
			Title:       "Connor Stream",
			Description: "Join Connor as he gets up to his usual antics.",
			Category:    CategoryRegularStream,
			Link:        "https://twitch.tv/AlveusSanctuary",
			HasTime:     true,
			Hour:        14,
			Minute:      30,
		},
		{
			Title:       "WAI New Episode",
			Description: "Watch the latest Wine About It episode.",
			Category:    CategoryMayaVideo,
			Link:        "https://www.youtube.com/@WineAboutItPodcast",
		},
	},
	{
		animalCareChats,
		{
			Title:       "WW New Episode",
			Description: "Watch the latest World's Wildest episode.",
			Category:    CategoryMayaVideo,
			Link:        "https://www.youtube.com/@worldswildestpodcast",
		},
	},
	{
		{
			Title:       "Show & Tell",
			Description: "Join Maya as she reviews this week's community submissions for Show and Tell.",
			Category:    CategoryRegularStream,
			Link:        "https://twitch.tv/AlveusSanctuary",
			HasTime:     true,
			Hour:        14,
			Minute:      30,
		},
	},
	{
		{
			Title:       "Nick Stream",
			Description: "Join Nick as he gets work done around the sanctuary.",
			Category:    CategoryRegularStream,
			Link:        "https://twitch.tv/AlveusSanctuary",
			HasTime:     true,
			Hour:        14,
			Minute:      30,
		},
	},
	{},
}

// EventsForWeekday returns a copy of the templates scheduled on wd
func EventsForWeekday(wd time.Weekday) []RegularEvent {
	src := eventsByWeekday[(int(wd)+6)%7]
	out := make([]RegularEvent, len(src))
	copy(out, src)
	return out
}
