package core

// nightTimeOfDay is the only time_of_day value that marks a night request.
// Matching is exact; "Night", "evening" or an absent value all mean day.
const nightTimeOfDay = "night"

// IsNight maps the request's time_of_day to the is_night feature.
func IsNight(timeOfDay string) bool {
	return timeOfDay == nightTimeOfDay
}
