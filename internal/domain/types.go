package domain

import "time"

// Frequency controls the minimum interval between two triggers of the same
// rule against the same entity.
type Frequency string

const (
	FrequencyDaily        Frequency = "daily"
	FrequencyWeekly       Frequency = "weekly"
	FrequencyMonthly      Frequency = "monthly"
	FrequencyHighRiskOnly Frequency = "high-risk-only"
)

// Frequencies lists the supported frequencies.
func Frequencies() []Frequency {
	return []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyHighRiskOnly}
}

// Valid reports whether f is a supported frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyHighRiskOnly:
		return true
	}
	return false
}

// Interval is the calendar re-trigger interval. high-risk-only has none.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// HighRiskOnly reports whether the rule fires only at high or critical severity.
func (f Frequency) HighRiskOnly() bool {
	return f == FrequencyHighRiskOnly
}

// Channel identifies a notification channel.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelPush    Channel = "push"
	ChannelInApp   Channel = "in_app"
	ChannelSlack   Channel = "slack"
	ChannelWebhook Channel = "webhook"
)

// Channels lists the supported channels.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelPush, ChannelInApp, ChannelSlack, ChannelWebhook}
}

// Valid reports whether c is a supported channel.
func (c Channel) Valid() bool {
	for _, known := range Channels() {
		if c == known {
			return true
		}
	}
	return false
}

// RequiresEndpoint reports whether delivery needs a configured recipient.
// In-app notifications go to the organization's feed.
func (c Channel) RequiresEndpoint() bool {
	return c != ChannelInApp
}

// Severity of an alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Severities lists severities from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Rank orders severities; unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s.Rank() > 0 }

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool { return s.Rank() >= other.Rank() }

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	StatusUnread       AlertStatus = "unread"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
)

// Valid reports whether s is a known status.
func (s AlertStatus) Valid() bool {
	return s == StatusUnread || s == StatusAcknowledged || s == StatusResolved
}

// CanTransition reports whether an alert in status s may move to next.
//
//	unread -> acknowledged -> resolved
//	unread -> resolved
func (s AlertStatus) CanTransition(next AlertStatus) bool {
	switch s {
	case StatusUnread:
		return next == StatusAcknowledged || next == StatusResolved
	case StatusAcknowledged:
		return next == StatusResolved
	}
	return false
}

// SourceStatuses returns the statuses from which next is reachable.
func SourceStatuses(next AlertStatus) []AlertStatus {
	var out []AlertStatus
	for _, s := range []AlertStatus{StatusUnread, StatusAcknowledged, StatusResolved} {
		if s.CanTransition(next) {
			out = append(out, s)
		}
	}
	return out
}
