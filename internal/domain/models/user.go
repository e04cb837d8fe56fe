package models

// User is the account that owns medicines. Users are provisioned by the
// identity service; this module only reads them.
type User struct {
	ID                           string `bson:"_id" json:"id"`
	Name                         string `bson:"name" json:"name"`
	Email                        string `bson:"email" json:"email"`
	EmailNotificationsEnabled    bool   `bson:"email_notifications_enabled" json:"emailNotificationsEnabled"`
	Phone                        string `bson:"phone,omitempty" json:"phone,omitempty"`
	WhatsAppNotificationsEnabled bool   `bson:"whatsapp_notifications_enabled" json:"whatsappNotificationsEnabled"`
}

// DueMedicine pairs a selected medicine with its owner.
type DueMedicine struct {
	Medicine Medicine `bson:",inline"`
	Owner    User     `bson:"owner"`
}
