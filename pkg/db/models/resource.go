package models

import (
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// Poster identifies who uploaded a resource.
type Poster struct {
	UID   string `json:"uid" firestore:"uid" gorm:"type:text"`
	Name  string `json:"name,omitempty" firestore:"name,omitempty" gorm:"type:text"`
	Email string `json:"email,omitempty" firestore:"email,omitempty" gorm:"type:text"`
}

// Attachment references a file hosted on the CDN.
type Attachment struct {
	URL         string `json:"url" firestore:"url" gorm:"type:text"`
	Name        string `json:"name,omitempty" firestore:"name,omitempty" gorm:"type:text"`
	ContentType string `json:"contentType,omitempty" firestore:"contentType,omitempty" gorm:"type:text"`
	Size        int64  `json:"size,omitempty" firestore:"size,omitempty"`
}

// Resource is a classified study resource.
type Resource struct {
	ID          string          `json:"id" firestore:"-" gorm:"type:text;primaryKey"`
	Title       string          `json:"title" firestore:"title" gorm:"type:text;not null"`
	Description string          `json:"description" firestore:"description" gorm:"type:text"`
	Placement   enums.Placement `json:"placement" firestore:"placement" gorm:"type:text;not null;index"`
	College     string          `json:"college,omitempty" firestore:"college,omitempty" gorm:"type:text;index"`
	Department  string          `json:"department,omitempty" firestore:"department,omitempty" gorm:"type:text"`
	Year        string          `json:"year,omitempty" firestore:"year,omitempty" gorm:"type:text"`
	Semester    string          `json:"semester,omitempty" firestore:"semester,omitempty" gorm:"type:text"`
	Course      string          `json:"course,omitempty" firestore:"course,omitempty" gorm:"type:text"`
	Tags        []string        `json:"tags" firestore:"tags" gorm:"type:text;serializer:json"`
	PostedBy    Poster          `json:"postedBy" firestore:"postedBy" gorm:"embedded;embeddedPrefix:posted_by_"`
	File        Attachment      `json:"file" firestore:"file" gorm:"embedded;embeddedPrefix:file_"`
	CreatedAt   time.Time       `json:"createdAt" firestore:"createdAt" gorm:"index"`
	UpdatedAt   time.Time       `json:"updatedAt" firestore:"updatedAt"`
}

func (Resource) TableName() string { return "classified_resources" }
