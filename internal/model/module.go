package model

import "github.com/jwalitptl/consultorio/pkg/auth"

// Module is a tenant of the application. Each has its own backend.
type Module string

const (
	ModuleOdonto         Module = "odonto"
	ModuleAdministrativo Module = "administrativo"
)

func (m Module) Valid() bool {
	return m == ModuleOdonto || m == ModuleAdministrativo
}

func (m Module) String() string { return string(m) }

// Identity is the session a browser carries in its cookies. Tokens are opaque here.
type Identity struct {
	Module       Module
	AccessToken  string
	RefreshToken string
}

// Email is the email claim of the access token, or "".
func (i Identity) Email() string {
	email, _ := auth.Email(i.AccessToken)
	return email
}

// UserID is the sub claim of the access token, or "".
func (i Identity) UserID() string {
	sub, _ := auth.Subject(i.AccessToken)
	return sub
}
