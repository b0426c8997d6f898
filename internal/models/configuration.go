package models

import (
	"fmt"
	"time"
)

// NotificationChannel is a delivery channel a user can opt into.
// Only in_app is delivered by this service; the rest are recorded intents
// handed to external senders.
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
	ChannelSMS   NotificationChannel = "sms"
)

// NotificationFrequency controls how often the external scheduler delivers
// digests for a user. The dispatcher itself is frequency-agnostic.
type NotificationFrequency string

const (
	FrequencyRealtime NotificationFrequency = "realtime"
	FrequencyDaily    NotificationFrequency = "daily"
	FrequencyWeekly   NotificationFrequency = "weekly"
)

// Threshold bounds for configuration validation.
const (
	MinWarningDays  = 1
	MaxWarningDays  = 365
	MinCriticalDays = 1
	MaxCriticalDays = 30
)

// AlertConfiguration holds one user's alerting preferences.
type AlertConfiguration struct {
	UserID                int64                 `json:"user_id"`
	WarningDays           int                   `json:"warning_days"`
	CriticalDays          int                   `json:"critical_days"`
	NotificationChannels  []NotificationChannel `json:"notification_channels"`
	NotificationFrequency NotificationFrequency `json:"notification_frequency"`
	NotificationTime      string                `json:"notification_time"`
	IsActive              bool                  `json:"is_active"`
	Locations             []string              `json:"locations,omitempty"`
	Categories            []string              `json:"categories,omitempty"`
	MinValueThreshold     *float64              `json:"min_value_threshold,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

// DefaultConfiguration returns the row created on first read for a user.
func DefaultConfiguration(userID int64) AlertConfiguration {
	return AlertConfiguration{
		UserID:                userID,
		WarningDays:           30,
		CriticalDays:          7,
		NotificationChannels:  []NotificationChannel{ChannelInApp},
		NotificationFrequency: FrequencyDaily,
		NotificationTime:      "09:00",
		IsActive:              true,
	}
}

// HasChannel reports whether the user opted into the given channel.
func (c *AlertConfiguration) HasChannel(ch NotificationChannel) bool {
	for _, have := range c.NotificationChannels {
		if have == ch {
			return true
		}
	}
	return false
}

// MatchesScope reports whether an item at the given location/category/value
// falls inside this configuration's scope filters. Empty filters match all.
func (c *AlertConfiguration) MatchesScope(location, category string, value float64) bool {
	if len(c.Locations) > 0 && !containsString(c.Locations, location) {
		return false
	}
	if len(c.Categories) > 0 && !containsString(c.Categories, category) {
		return false
	}
	if c.MinValueThreshold != nil && value < *c.MinValueThreshold {
		return false
	}
	return true
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// ConfigurationPatch is a partial update to an AlertConfiguration. Nil fields
// are left untouched.
type ConfigurationPatch struct {
	WarningDays           *int                   `json:"warning_days,omitempty"`
	CriticalDays          *int                   `json:"critical_days,omitempty"`
	NotificationChannels  *[]NotificationChannel `json:"notification_channels,omitempty"`
	NotificationFrequency *NotificationFrequency `json:"notification_frequency,omitempty"`
	NotificationTime      *string                `json:"notification_time,omitempty"`
	IsActive              *bool                  `json:"is_active,omitempty"`
	Locations             *[]string              `json:"locations,omitempty"`
	Categories            *[]string              `json:"categories,omitempty"`
	MinValueThreshold     *float64               `json:"min_value_threshold,omitempty"`
}

// Apply merges the patch into a copy of cfg and validates the result.
func (p ConfigurationPatch) Apply(cfg AlertConfiguration) (AlertConfiguration, error) {
	if p.WarningDays != nil {
		cfg.WarningDays = *p.WarningDays
	}
	if p.CriticalDays != nil {
		cfg.CriticalDays = *p.CriticalDays
	}
	if p.NotificationChannels != nil {
		cfg.NotificationChannels = *p.NotificationChannels
	}
	if p.NotificationFrequency != nil {
		cfg.NotificationFrequency = *p.NotificationFrequency
	}
	if p.NotificationTime != nil {
		cfg.NotificationTime = *p.NotificationTime
	}
	if p.IsActive != nil {
		cfg.IsActive = *p.IsActive
	}
	if p.Locations != nil {
		cfg.Locations = *p.Locations
	}
	if p.Categories != nil {
		cfg.Categories = *p.Categories
	}
	if p.MinValueThreshold != nil {
		cfg.MinValueThreshold = p.MinValueThreshold
	}
	if err := cfg.Validate(); err != nil {
		return AlertConfiguration{}, err
	}
	return cfg, nil
}

// Validate checks threshold bounds and channel/frequency membership,
// collecting every violation into one field-scoped ValidationError.
func (c *AlertConfiguration) Validate() error {
	v := ValidationError{Fields: map[string]string{}}
	if c.WarningDays < MinWarningDays || c.WarningDays > MaxWarningDays {
		v.Fields["warning_days"] = fmt.Sprintf("must be between %d and %d", MinWarningDays, MaxWarningDays)
	}
	if c.CriticalDays < MinCriticalDays || c.CriticalDays > MaxCriticalDays {
		v.Fields["critical_days"] = fmt.Sprintf("must be between %d and %d", MinCriticalDays, MaxCriticalDays)
	}
	if c.CriticalDays >= c.WarningDays {
		if _, taken := v.Fields["critical_days"]; !taken {
			v.Fields["critical_days"] = "must be less than warning_days"
		} else {
			v.Fields["critical_days"] += "; must be less than warning_days"
		}
		if _, taken := v.Fields["warning_days"]; !taken {
			v.Fields["warning_days"] = "must be greater than critical_days"
		}
	}
	if len(c.NotificationChannels) == 0 {
		v.Fields["notification_channels"] = "must not be empty"
	}
	for _, ch := range c.NotificationChannels {
		switch ch {
		case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS:
		default:
			v.Fields["notification_channels"] = fmt.Sprintf("unknown channel %q", ch)
		}
	}
	switch c.NotificationFrequency {
	case FrequencyRealtime, FrequencyDaily, FrequencyWeekly:
	default:
		v.Fields["notification_frequency"] = fmt.Sprintf("unknown frequency %q", c.NotificationFrequency)
	}
	if len(v.Fields) > 0 {
		return &v
	}
	return nil
}
