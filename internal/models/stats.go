package models

// DashboardStats is the summary shown on the admin home page.
type DashboardStats struct {
	DoctorsTotal        int `json:"doctors_total"`
	DoctorsActive       int `json:"doctors_active"`
	DoctorsPending      int `json:"doctors_pending"`
	DoctorsSuspended    int `json:"doctors_suspended"`
	EmailsConfirmed     int `json:"emails_confirmed"`
	ActiveSubscriptions int `json:"active_subscriptions"`
	SubscriptionTypes   int `json:"subscription_types"`
	UpcomingEvents      int `json:"upcoming_events"`
}
