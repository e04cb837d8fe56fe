package models

import "time"

// DispatchMode selects the reminder cadence of a dispatch run.
type DispatchMode string

const (
	DispatchDaily  DispatchMode = "DAILY"
	DispatchWeekly DispatchMode = "WEEKLY"
)

// DispatchFailure records why a single user's reminder could not be sent.
type DispatchFailure struct {
	UserID    string `bson:"user_id" json:"userId"`
	Email     string `bson:"email" json:"email"`
	Medicines int    `bson:"medicines" json:"medicines"`
	Reason    string `bson:"reason" json:"reason"`
}

// DispatchReport summarizes one dispatch run.
//
// UsersNotified counts every user a reminder was attempted for, EmailsSent
// only the successful ones.
type DispatchReport struct {
	Mode          DispatchMode      `bson:"mode" json:"mode"`
	RunAt         time.Time         `bson:"run_at" json:"runAt"`
	AsOf          time.Time         `bson:"as_of" json:"asOf"`
	HorizonDays   int               `bson:"horizon_days" json:"horizonDays"`
	Selected      int               `bson:"selected" json:"selected"`
	UsersNotified int               `bson:"users_notified" json:"usersNotified"`
	EmailsSent    int               `bson:"emails_sent" json:"emailsSent"`
	Failures      []DispatchFailure `bson:"failures" json:"failures"`
}

// FailureCount returns the number of users whose reminder failed.
func (r DispatchReport) FailureCount() int {
	return len(r.Failures)
}
