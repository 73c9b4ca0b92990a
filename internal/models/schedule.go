package models

// ScheduleRule is a daily wall-clock alert as supplied by configuration.
// Time is "HH:MM" in the configured timezone.
type ScheduleRule struct {
	Name    string `json:"name,omitempty" yaml:"name"`
	Time    string `json:"time" yaml:"time"`
	Message string `json:"message" yaml:"message"`
}

// Key identifies the rule for fire-state persistence.
func (r ScheduleRule) Key() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Time + "|" + r.Message
}
