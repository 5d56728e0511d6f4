package enums

import "slices"

// NotificationType classifies a notification for icons, links and email templates.
type NotificationType string

const (
	NotificationTypeLibrary  NotificationType = "library"
	NotificationTypeTraining NotificationType = "training"
	NotificationTypeTutorial NotificationType = "tutorial"
	NotificationTypeSystem   NotificationType = "system"
)

var notificationTypes = []NotificationType{
	NotificationTypeLibrary,
	NotificationTypeTraining,
	NotificationTypeTutorial,
	NotificationTypeSystem,
}

func (n NotificationType) IsValid() bool {
	return slices.Contains(notificationTypes, n)
}

// ParseNotificationType is case-sensitive; callers lower-case user input first.
func ParseNotificationType(value string) (NotificationType, error) {
	return parseOne("notification type", value, notificationTypes)
}
