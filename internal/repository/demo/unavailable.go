package demo

import (
	"context"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/pkg/errors"
)

type unavailableAllowList struct{}

func (unavailableAllowList) List(context.Context) ([]*model.AllowedEmail, error) {
	return nil, errors.Unavailable(MsgUnavailable)
}

func (unavailableAllowList) Create(context.Context, *model.AllowedEmail) error {
	return errors.Unavailable(MsgUnavailable)
}

func (unavailableAllowList) SetEnabled(context.Context, string, bool) error {
	return errors.Unavailable(MsgUnavailable)
}

func (unavailableAllowList) Delete(context.Context, string) error {
	return errors.Unavailable(MsgUnavailable)
}

// IsEnabled lets everyone in: demo sign in never consults the allow list.
func (unavailableAllowList) IsEnabled(context.Context, string) (bool, error) {
	return true, nil
}

type unavailableDrive struct{}

func (unavailableDrive) Get(context.Context, string) (*model.DriveConnection, error) {
	return nil, errors.Unavailable(MsgUnavailable)
}

func (unavailableDrive) Upsert(context.Context, *model.DriveConnection) error {
	return errors.Unavailable(MsgUnavailable)
}

func (unavailableDrive) Delete(context.Context, string) error {
	return errors.Unavailable(MsgUnavailable)
}
