package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ad-tracker/upload-scheduler-go/internal/db/models"
)

// Platform limits for upload metadata.
const (
	DefaultMaxTitleLength       = 100
	DefaultMaxDescriptionLength = 5000
)

var (
	videoIDRegex  = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
	channelHandle = regexp.MustCompile(`^@[a-zA-Z0-9._-]{3,30}$`)
)

// ValidationError names the offending field.
//
//nolint:revive // the package name is not repeated at call sites that match on the type
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

type Validator struct {
	maxTitleLength       int
	maxDescriptionLength int
	validationEnabled    bool
}

func New(maxTitleLength, maxDescriptionLength int, enabled bool) *Validator {
	if maxTitleLength <= 0 {
		maxTitleLength = DefaultMaxTitleLength
	}
	if maxDescriptionLength <= 0 {
		maxDescriptionLength = DefaultMaxDescriptionLength
	}
	return &Validator{
		maxTitleLength:       maxTitleLength,
		maxDescriptionLength: maxDescriptionLength,
		validationEnabled:    enabled,
	}
}

func (v *Validator) ValidateProfileInput(in *models.ProfileInput) error {
	if !v.validationEnabled {
		return nil
	}
	if in == nil {
		return invalid("profile", "missing body")
	}
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if in.DailyPushCount < 0 {
		return invalid("dailyPushCount", "must not be negative")
	}
	return v.validateChannel(in.ChannelName, in.ChannelLink)
}

func (v *Validator) ValidateProfilePatch(p *models.ProfilePatch) error {
	if !v.validationEnabled || p == nil {
		return nil
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name", "must not be empty")
	}
	if p.DailyPushCount != nil && *p.DailyPushCount < 0 {
		return invalid("dailyPushCount", "must not be negative")
	}
	name, link := "", ""
	if p.ChannelName != nil {
		name = *p.ChannelName
	}
	if p.ChannelLink != nil {
		link = *p.ChannelLink
	}
	return v.validateChannel(name, link)
}

func (v *Validator) validateChannel(name, link string) error {
	if name != "" && strings.HasPrefix(name, "@") && !channelHandle.MatchString(name) {
		return invalid("channelName", "malformed handle %q", name)
	}
	if link != "" {
		if msg := linkProblem(link); msg != "" {
			return invalid("channelLink", "%s", msg)
		}
	}
	return nil
}

func (v *Validator) ValidateVideoInput(in *models.VideoInput) error {
	if !v.validationEnabled {
		return nil
	}
	if in == nil {
		return invalid("video", "missing body")
	}
	if in.ProfileID <= 0 {
		return invalid("profileId", "must be positive")
	}
	if err := v.validateTitle(in.Title); err != nil {
		return err
	}
	if err := v.validateDescription(in.Description); err != nil {
		return err
	}
	if in.ScheduleDate.IsZero() {
		return invalid("scheduleDate", "is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		return invalid("status", "unknown status %q", in.Status)
	}
	if in.YoutubeLink != nil {
		if msg := linkProblem(*in.YoutubeLink); msg != "" {
			return invalid("youtubeLink", "%s", msg)
		}
	}
	return validateSizes(in.FileSize, in.OriginalFileSize)
}

func (v *Validator) ValidateVideoPatch(p *models.VideoPatch) error {
	if !v.validationEnabled || p == nil {
		return nil
	}
	if p.ProfileID != nil && *p.ProfileID <= 0 {
		return invalid("profileId", "must be positive")
	}
	if p.Title != nil {
		if err := v.validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Description != nil {
		if err := v.validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.ScheduleDate != nil && p.ScheduleDate.IsZero() {
		return invalid("scheduleDate", "is required")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "unknown status %q", *p.Status)
	}
	if p.YoutubeLink.Value != nil {
		if msg := linkProblem(*p.YoutubeLink.Value); msg != "" {
			return invalid("youtubeLink", "%s", msg)
		}
	}
	return validateSizes(p.FileSize.Value, p.OriginalFileSize.Value)
}

func (v *Validator) validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return invalid("title", "must not be empty")
	}
	if n := utf8.RuneCountInString(title); n > v.maxTitleLength {
		return invalid("title", "%d characters exceeds the limit of %d", n, v.maxTitleLength)
	}
	return nil
}

func (v *Validator) validateDescription(description string) error {
	if n := utf8.RuneCountInString(description); n > v.maxDescriptionLength {
		return invalid("description", "%d characters exceeds the limit of %d", n, v.maxDescriptionLength)
	}
	return nil
}

func validateSizes(sizes ...*int64) error {
	for _, s := range sizes {
		if s != nil && *s < 0 {
			return invalid("fileSize", "must not be negative")
		}
	}
	return nil
}

// ValidateLink accepts absolute http and https URLs.
func (v *Validator) ValidateLink(link string) error {
	if msg := linkProblem(link); msg != "" {
		return invalid("link", "%s", msg)
	}
	return nil
}

func linkProblem(link string) string {
	u, err := url.Parse(link)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Sprintf("%q is not an absolute URL", link)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Sprintf("scheme %q is not http or https", u.Scheme)
	}
	return ""
}

func (v *Validator) IsValidVideoID(videoID string) bool {
	return videoIDRegex.MatchString(videoID)
}

// VideoIDFromLink extracts the platform video id from a watch or short link.
func (v *Validator) VideoIDFromLink(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}

	var id string
	switch strings.TrimPrefix(u.Hostname(), "www.") {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com":
		if u.Path == "/watch" {
			id = u.Query().Get("v")
		} else if rest, ok := strings.CutPrefix(u.Path, "/shorts/"); ok {
			id = strings.Trim(rest, "/")
		}
	}

	if !videoIDRegex.MatchString(id) {
		return "", false
	}
	return id, true
}
