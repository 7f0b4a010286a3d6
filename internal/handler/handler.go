// Package handler holds what the resource handlers share: the bound identity and form binding
// with field messages in Spanish.
package handler

import (
	stderrors "errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/internal/session"
	"github.com/jwalitptl/consultorio/pkg/errors"
)

const (
	msgInvalidForm  = "Revisá los datos del formulario."
	msgUnreadable   = "No pudimos leer el formulario."
	msgFieldInvalid = "Valor inválido."
)

var fieldMessages = map[string]string{
	"required": "Este campo es obligatorio.",
	"email":    "Ingresá un email válido.",
	"min":      "Es demasiado corto.",
	"max":      "Es demasiado largo.",
	"oneof":    "Valor no permitido.",
	"numeric":  "Tiene que ser un número.",
}

var registerOnce sync.Once

// registerFieldNames makes validation errors report the form field name instead of the Go one.
func registerFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
}

// Bind decodes the request body (form or JSON, by Content-Type) into obj and runs its binding
// tags. Failures come back as a Validation AppError with one message per field.
func Bind(c *gin.Context, obj any) error {
	registerOnce.Do(registerFieldNames)

	err := c.ShouldBind(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Validation(msgUnreadable)
	}
	appErr := errors.Validation(msgInvalidForm)
	for _, fe := range verrs {
		msg, ok := fieldMessages[fe.Tag()]
		if !ok {
			msg = msgFieldInvalid
		}
		appErr = appErr.WithField(fe.Field(), msg)
	}
	return appErr
}

// Identity is the session bound to the request by the session middleware.
func Identity(c *gin.Context) *model.Identity {
	return session.FromContext(c)
}

// ActorID is the auth user id of the request's identity, or "".
func ActorID(c *gin.Context) string {
	if id := Identity(c); id != nil {
		return id.UserID()
	}
	return ""
}

// ActorEmail is the email claim of the request's identity, or "".
func ActorEmail(c *gin.Context) string {
	if id := Identity(c); id != nil {
		return id.Email()
	}
	return ""
}
