package models

import (
	"slices"
	"time"

	"github.com/angelmondragon/studyhub-backend/pkg/enums"
)

// Notification is a broadcast announcement. It is only ever mutated by appending reader ids.
type Notification struct {
	ID        string                 `json:"id" firestore:"-" gorm:"type:text;primaryKey"`
	Title     string                 `json:"title" firestore:"title" gorm:"type:text;not null"`
	Message   string                 `json:"message" firestore:"message" gorm:"type:text;not null"`
	Type      enums.NotificationType `json:"type" firestore:"type" gorm:"type:text;not null"`
	Link      *string                `json:"link,omitempty" firestore:"link,omitempty" gorm:"type:text"`
	Metadata  map[string]any         `json:"metadata,omitempty" firestore:"metadata,omitempty" gorm:"type:text;serializer:json"`
	ReadBy    []string               `json:"readBy" firestore:"readBy" gorm:"type:text;serializer:json"`
	CreatedAt time.Time              `json:"createdAt" firestore:"createdAt,serverTimestamp" gorm:"index"`
}

func (Notification) TableName() string { return "notifications" }

// ReadByUser reports whether userID has acknowledged the notification.
func (n Notification) ReadByUser(userID string) bool {
	return slices.Contains(n.ReadBy, userID)
}
