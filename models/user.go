package models

import "time"

// User holds the structure for the user collection in mongo
type User struct {
	ID      string      `json:"_id" bson:"_id"`
	Details UserDetails `json:"user" bson:"user"`
	Version int32       `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in the
// user collection in mongo. Restriction fields are embedded here; at most one
// mute window and one ban window are active at a time (latest write wins), and
// strikeCount only ever goes up.
type UserDetails struct {
	Name           string      `json:"name" bson:"name"`
	Username       string      `json:"username" bson:"username"`
	Email          string      `json:"email" bson:"email"`
	Password       string      `json:"password" bson:"password"`
	ProfilePicture string      `json:"profilePicture" bson:"profilePicture"`
	Role           string      `json:"role" bson:"role"`
	ChatMuteUntil  *time.Time  `json:"chatMuteUntil,omitempty" bson:"chatMuteUntil,omitempty"`
	ChatMuteReason string      `json:"chatMuteReason,omitempty" bson:"chatMuteReason,omitempty"`
	BannedUntil    *time.Time  `json:"bannedUntil,omitempty" bson:"bannedUntil,omitempty"`
	BanPermanent   bool        `json:"banPermanent" bson:"banPermanent"`
	BanReason      string      `json:"banReason,omitempty" bson:"banReason,omitempty"`
	StrikeCount    int         `json:"strikeCount" bson:"strikeCount"`
	CreatedAt      interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt      interface{} `json:"updatedAt" bson:"updatedAt"`
}

// DisplayName prefers the profile name and falls back to the username
func (d UserDetails) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Username
}

// IsStaff reports whether the user holds a moderation role
func (u User) IsStaff() bool {
	return IsStaffRole(u.Details.Role)
}

// MutedAt reports whether the user's mute window covers the given instant
func (u User) MutedAt(t time.Time) bool {
	return u.Details.ChatMuteUntil != nil && u.Details.ChatMuteUntil.After(t)
}

// BannedAt reports whether the user is permanently banned or inside a temporary
// ban window at the given instant
func (u User) BannedAt(t time.Time) bool {
	if u.Details.BanPermanent {
		return true
	}
	return u.Details.BannedUntil != nil && u.Details.BannedUntil.After(t)
}
