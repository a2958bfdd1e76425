package models

import "time"

// ExperienceStatus is the publication state of the owning content record.
type ExperienceStatus string

const (
	ExperienceStatusDraft      ExperienceStatus = "DRAFT"
	ExperienceStatusProcessing ExperienceStatus = "PROCESSING"
	ExperienceStatusPublished  ExperienceStatus = "PUBLISHED"
)

// Experience is the published asset entity that receives output URLs when a
// processing job succeeds. The core only writes the fields the completion
// resolver owns; it never deletes the record.
type Experience struct {
	ID        string           `json:"id" badgerhold:"key"`
	Title     string           `json:"title,omitempty"`
	Status    ExperienceStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	PlyURL       string `json:"ply_url,omitempty"`
	MetadataURL  string `json:"metadata_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PreviewURL   string `json:"preview_url,omitempty"`
}
