package models

import "gorm.io/gorm"

// Preference is a menu type customers subscribe to, e.g. "vegetarian".
// Static reference data: created through the admin API, never edited
// during a conversation.
type Preference struct {
	gorm.Model

	Name string `json:"name" gorm:"uniqueIndex"`
}
