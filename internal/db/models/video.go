package models

import (
	"errors"
	"fmt"
	"time"
)

// VideoStatus is the lifecycle state of a scheduled upload.
type VideoStatus string

// VideoStatus constants.
const (
	VideoStatusPending        VideoStatus = "pending"
	VideoStatusCompleted      VideoStatus = "completed"
	VideoStatusMissedSchedule VideoStatus = "missed-schedule"
)

// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// transitions lists the allowed status moves.
var transitions = map[VideoStatus][]VideoStatus{
	VideoStatusPending:        {VideoStatusCompleted, VideoStatusMissedSchedule},
	VideoStatusCompleted:      {VideoStatusPending},
	VideoStatusMissedSchedule: {VideoStatusPending},
}

// Valid reports whether s is a known status.
func (s VideoStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransitionTo reports whether s may move to next. Staying put is allowed.
func (s VideoStatus) CanTransitionTo(next VideoStatus) bool {
	if s == next {
		return next.Valid()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Video is one scheduled upload job owned by a profile.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Video struct {
	ID               int64       `db:"id" json:"id"`
	ProfileID        int64       `db:"profile_id" json:"profileId"`
	Title            string      `db:"title" json:"title"`
	Description      string      `db:"description" json:"description"`
	FilePath         *string     `db:"file_path" json:"filePath"`
	OriginalFilePath *string     `db:"original_file_path" json:"originalFilePath"`
	FileSize         *int64      `db:"file_size" json:"fileSize"`
	OriginalFileSize *int64      `db:"original_file_size" json:"originalFileSize"`
	ThumbnailPath    *string     `db:"thumbnail_path" json:"thumbnailPath"`
	Duration         *string     `db:"duration" json:"duration"`
	ScheduleDate     time.Time   `db:"schedule_date" json:"scheduleDate"`
	Status           VideoStatus `db:"status" json:"status"`
	UploadedDate     *time.Time  `db:"uploaded_date" json:"uploadedDate"`
	YoutubeLink      *string     `db:"youtube_link" json:"youtubeLink"`
	IsFileUploaded   bool        `db:"is_file_uploaded" json:"isFileUploaded"`
	IsPlaceholder    bool        `db:"is_placeholder" json:"isPlaceholder"`
}

// VideoInput carries the fields for a new video. Status defaults to pending.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoInput struct {
	ProfileID        int64       `json:"profileId"`
	Title            string      `json:"title"`
	Description      string      `json:"description"`
	FilePath         *string     `json:"filePath"`
	OriginalFilePath *string     `json:"originalFilePath"`
	FileSize         *int64      `json:"fileSize"`
	OriginalFileSize *int64      `json:"originalFileSize"`
	ThumbnailPath    *string     `json:"thumbnailPath"`
	Duration         *string     `json:"duration"`
	ScheduleDate     time.Time   `json:"scheduleDate"`
	Status           VideoStatus `json:"status,omitempty"`
	UploadedDate     *time.Time  `json:"uploadedDate"`
	YoutubeLink      *string     `json:"youtubeLink"`
	IsFileUploaded   bool        `json:"isFileUploaded"`
	IsPlaceholder    bool        `json:"isPlaceholder"`
}

// VideoPatch lists every updatable video field.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type VideoPatch struct {
	ProfileID        *int64              `json:"profileId,omitempty"`
	Title            *string             `json:"title,omitempty"`
	Description      *string             `json:"description,omitempty"`
	FilePath         Nullable[string]    `json:"filePath,omitzero"`
	OriginalFilePath Nullable[string]    `json:"originalFilePath,omitzero"`
	FileSize         Nullable[int64]     `json:"fileSize,omitzero"`
	OriginalFileSize Nullable[int64]     `json:"originalFileSize,omitzero"`
	ThumbnailPath    Nullable[string]    `json:"thumbnailPath,omitzero"`
	Duration         Nullable[string]    `json:"duration,omitzero"`
	ScheduleDate     *time.Time          `json:"scheduleDate,omitempty"`
	Status           *VideoStatus        `json:"status,omitempty"`
	UploadedDate     Nullable[time.Time] `json:"uploadedDate,omitzero"`
	YoutubeLink      Nullable[string]    `json:"youtubeLink,omitzero"`
	IsFileUploaded   *bool               `json:"isFileUploaded,omitempty"`
	IsPlaceholder    *bool               `json:"isPlaceholder,omitempty"`
}

// NewVideo builds a Video from input, without an id.
func NewVideo(in *VideoInput) *Video {
	v := &Video{
		ProfileID:        in.ProfileID,
		Title:            in.Title,
		Description:      in.Description,
		FilePath:         cloneString(in.FilePath),
		OriginalFilePath: cloneString(in.OriginalFilePath),
		FileSize:         cloneInt64(in.FileSize),
		OriginalFileSize: cloneInt64(in.OriginalFileSize),
		ThumbnailPath:    cloneString(in.ThumbnailPath),
		Duration:         cloneString(in.Duration),
		ScheduleDate:     in.ScheduleDate,
		Status:           in.Status,
		UploadedDate:     cloneTime(in.UploadedDate),
		YoutubeLink:      cloneString(in.YoutubeLink),
		IsFileUploaded:   in.IsFileUploaded,
		IsPlaceholder:    in.IsPlaceholder,
	}
	if v.Status == "" {
		v.Status = VideoStatusPending
	}
	return v
}

// Input returns the video's fields as create input (id dropped).
func (v *Video) Input() *VideoInput {
	return &VideoInput{
		ProfileID:        v.ProfileID,
		Title:            v.Title,
		Description:      v.Description,
		FilePath:         cloneString(v.FilePath),
		OriginalFilePath: cloneString(v.OriginalFilePath),
		FileSize:         cloneInt64(v.FileSize),
		OriginalFileSize: cloneInt64(v.OriginalFileSize),
		ThumbnailPath:    cloneString(v.ThumbnailPath),
		Duration:         cloneString(v.Duration),
		ScheduleDate:     v.ScheduleDate,
		Status:           v.Status,
		UploadedDate:     cloneTime(v.UploadedDate),
		YoutubeLink:      cloneString(v.YoutubeLink),
		IsFileUploaded:   v.IsFileUploaded,
		IsPlaceholder:    v.IsPlaceholder,
	}
}

// Apply writes the patch onto the video. It does not validate the result;
// call CheckTransition before and Validate after.
func (vp *VideoPatch) Apply(v *Video) {
	if vp == nil {
		return
	}
	if vp.ProfileID != nil {
		v.ProfileID = *vp.ProfileID
	}
	if vp.Title != nil {
		v.Title = *vp.Title
	}
	if vp.Description != nil {
		v.Description = *vp.Description
	}
	vp.FilePath.apply(&v.FilePath)
	vp.OriginalFilePath.apply(&v.OriginalFilePath)
	vp.FileSize.apply(&v.FileSize)
	vp.OriginalFileSize.apply(&v.OriginalFileSize)
	vp.ThumbnailPath.apply(&v.ThumbnailPath)
	vp.Duration.apply(&v.Duration)
	if vp.ScheduleDate != nil {
		v.ScheduleDate = *vp.ScheduleDate
	}
	if vp.Status != nil {
		v.Status = *vp.Status
	}
	vp.UploadedDate.apply(&v.UploadedDate)
	vp.YoutubeLink.apply(&v.YoutubeLink)
	if vp.IsFileUploaded != nil {
		v.IsFileUploaded = *vp.IsFileUploaded
	}
	if vp.IsPlaceholder != nil {
		v.IsPlaceholder = *vp.IsPlaceholder
	}
}

// CheckTransition validates the status change the patch would make on v.
func (vp *VideoPatch) CheckTransition(v *Video) error {
	if vp == nil || vp.Status == nil {
		return nil
	}
	if !v.Status.CanTransitionTo(*vp.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, *vp.Status)
	}
	return nil
}

// CheckInvariants verifies that upload details only accompany a completed video.
func (v *Video) CheckInvariants() error {
	if !v.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, v.Status)
	}
	if v.Status != VideoStatusCompleted && (v.UploadedDate != nil || v.YoutubeLink != nil) {
		return fmt.Errorf("%w: uploadedDate and youtubeLink require status %s", ErrInvalidTransition, VideoStatusCompleted)
	}
	return nil
}

// MarkUploaded moves a pending video to completed with its upload details.
func (v *Video) MarkUploaded(at time.Time, link string) error {
	if !v.Status.CanTransitionTo(VideoStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, VideoStatusCompleted)
	}
	t := at
	l := link
	v.Status = VideoStatusCompleted
	v.UploadedDate = &t
	v.YoutubeLink = &l
	return nil
}

// RevertUpload moves a completed video back to pending and clears its upload details.
func (v *Video) RevertUpload() error {
	if v.Status != VideoStatusCompleted {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, VideoStatusPending)
	}
	v.Status = VideoStatusPending
	v.UploadedDate = nil
	v.YoutubeLink = nil
	return nil
}

// IsOverdue reports whether a pending video's slot has passed at now.
func (v *Video) IsOverdue(now time.Time) bool {
	return v.Status == VideoStatusPending && v.ScheduleDate.Before(now)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneInt64(i *int64) *int64 {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
