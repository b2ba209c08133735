package domain

import "time"

// Period is an administrator-defined voting window.
type Period struct {
	ID        string    `json:"id"`
	Name      string    `json:"periodName"`
	StartAt   time.Time `json:"startDate"`
	EndAt     time.Time `json:"endDate"`
	Active    bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// OpenAt reports whether the period accepts submissions at now (bounds inclusive).
func (p Period) OpenAt(now time.Time) bool {
	return p.Active && !now.Before(p.StartAt) && !now.After(p.EndAt)
}
