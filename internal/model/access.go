package model

import "time"

// AllowedEmail is an entry of the login allow-list the master account manages.
type AllowedEmail struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Enabled   bool      `db:"enabled" json:"enabled"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// DriveConnection records which Drive account and root folder an owner uses for attachments.
type DriveConnection struct {
	OwnerID        string    `db:"owner_id" json:"owner_id"`
	ConnectedEmail *string   `db:"connected_email" json:"connected_email"`
	RootFolderID   *string   `db:"root_folder_id" json:"root_folder_id"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}
