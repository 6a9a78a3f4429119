package models

import "time"

type PlatformIntegration struct {
	ID          string    `db:"id" json:"id"`
	ProjectID   string    `db:"project_id" json:"project_id"`
	Platform    Platform  `db:"platform" json:"platform"`
	AccessToken string    `db:"access_token" json:"-"`
	AccountID   string    `db:"account_id" json:"account_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
