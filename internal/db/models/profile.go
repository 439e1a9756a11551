package models

import "time"

// PushWindow is the rolling period a profile's daily push count covers.
const PushWindow = 24 * time.Hour

// Profile is a publishing identity with its own push budget.
type Profile struct {
	ID             int64      `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	ChannelName    string     `db:"channel_name" json:"channelName"`
	ChannelLink    string     `db:"channel_link" json:"channelLink"`
	DailyPushCount int        `db:"daily_push_count" json:"dailyPushCount"`
	LastPushReset  *time.Time `db:"last_push_reset" json:"lastPushReset"`
}

// ProfileInput carries the fields for a new profile.
type ProfileInput struct {
	Name           string     `json:"name"`
	ChannelName    string     `json:"channelName"`
	ChannelLink    string     `json:"channelLink"`
	DailyPushCount int        `json:"dailyPushCount"`
	LastPushReset  *time.Time `json:"lastPushReset"`
}

// ProfilePatch lists every updatable profile field. Nil pointers and unset
// Nullables leave the stored value alone.
type ProfilePatch struct {
	Name           *string             `json:"name,omitempty"`
	ChannelName    *string             `json:"channelName,omitempty"`
	ChannelLink    *string             `json:"channelLink,omitempty"`
	DailyPushCount *int                `json:"dailyPushCount,omitempty"`
	LastPushReset  Nullable[time.Time] `json:"lastPushReset,omitzero"`
}

// NewProfile builds a Profile from input, without an id.
func NewProfile(in *ProfileInput) *Profile {
	p := &Profile{
		Name:           in.Name,
		ChannelName:    in.ChannelName,
		ChannelLink:    in.ChannelLink,
		DailyPushCount: in.DailyPushCount,
	}
	if in.LastPushReset != nil {
		t := *in.LastPushReset
		p.LastPushReset = &t
	}
	return p
}

// Input returns the profile's fields as create input (id dropped).
func (p *Profile) Input() *ProfileInput {
	in := &ProfileInput{
		Name:           p.Name,
		ChannelName:    p.ChannelName,
		ChannelLink:    p.ChannelLink,
		DailyPushCount: p.DailyPushCount,
	}
	if p.LastPushReset != nil {
		t := *p.LastPushReset
		in.LastPushReset = &t
	}
	return in
}

// Apply writes the patch onto the profile.
func (pp *ProfilePatch) Apply(p *Profile) {
	if pp == nil {
		return
	}
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.ChannelName != nil {
		p.ChannelName = *pp.ChannelName
	}
	if pp.ChannelLink != nil {
		p.ChannelLink = *pp.ChannelLink
	}
	if pp.DailyPushCount != nil {
		p.DailyPushCount = *pp.DailyPushCount
	}
	pp.LastPushReset.apply(&p.LastPushReset)
}

// IsEmpty reports whether the patch changes nothing.
func (pp *ProfilePatch) IsEmpty() bool {
	return pp == nil || (pp.Name == nil && pp.ChannelName == nil && pp.ChannelLink == nil &&
		pp.DailyPushCount == nil && !pp.LastPushReset.Set)
}

// RecordPush applies one push at now. A profile that never pushed, or whose
// window started more than PushWindow ago, opens a new window and this push
// counts as its first. Otherwise the count grows and the window start stays.
func (p *Profile) RecordPush(now time.Time) {
	if p.LastPushReset == nil || now.Sub(*p.LastPushReset) > PushWindow {
		t := now
		p.DailyPushCount = 1
		p.LastPushReset = &t
		return
	}
	p.DailyPushCount++
}

// ResetPushes zeroes the count and restarts the window at now.
func (p *Profile) ResetPushes(now time.Time) {
	t := now
	p.DailyPushCount = 0
	p.LastPushReset = &t
}

// PushesInWindow returns the count that still applies at now: zero once the
// window has elapsed.
func (p *Profile) PushesInWindow(now time.Time) int {
	if p.LastPushReset == nil || now.Sub(*p.LastPushReset) > PushWindow {
		return 0
	}
	return p.DailyPushCount
}
