// Package auth signs users in against the hosted auth provider of their module, or against a
// local token issuer in demo mode, and decides where they land afterwards.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/consultorio/internal/model"
	"github.com/jwalitptl/consultorio/pkg/auth"
	"github.com/jwalitptl/consultorio/pkg/errors"
	"github.com/jwalitptl/consultorio/pkg/gotrue"
	"github.com/jwalitptl/consultorio/pkg/metrics"
	"github.com/jwalitptl/consultorio/pkg/security"
)

// MasterHome is where the master account lands after signing in.
const MasterHome = "/odonto/maestro"

const (
	msgMissingCredentials = "Completá email y contraseña"
	msgLookupMissing      = "Falta configurar el control de emails habilitados en Supabase."
	msgNotAllowed         = "Este email no está habilitado. Pedile acceso al administrador."
	msgProviderDisabled   = "En Supabase está desactivado el login por email. Activá \"Email\" en Authentication → Providers → Email."
	msgNotConfirmed       = "Tu email no está confirmado en Supabase. Confirmalo o desactivá la confirmación de email."
	msgBadProviderConfig  = "Configuración de Supabase inválida. Revisá URL y ANON KEY."
	msgInvalidCredentials = "Credenciales inválidas"
	msgProviderDown       = "El servicio de autenticación no responde. Intentá de nuevo en unos minutos."

	msgRegisterDemo       = "Registro no disponible en modo demo"
	msgPasswordTooShort   = "La contraseña debe tener al menos 6 caracteres"
	msgMasterNoRegister   = "El email maestro (%s) no se registra acá."
	msgRegisterNotAllowed = "Este email no está habilitado para registrarse."
	msgAlreadyRegistered  = "El email ya está registrado. Ingresá con tu contraseña."
	msgRegisterFailed     = "No pudimos crear la cuenta. Revisá los datos e intentá de nuevo."
	msgNeedsConfirmation  = "La cuenta se creó pero falta confirmación por email. Desactivá la verificación en Supabase para ingresar automáticamente."

	msgResetDemo       = "No disponible en modo demo"
	msgResetEmail      = "Ingresá un email válido"
	msgResetNotAllowed = "Ese email no está habilitado para recuperar contraseña."
	msgResetFailed     = "No pudimos enviar el correo. Intentá de nuevo."

	msgSessionExpired = "Tu sesión expiró. Volvé a iniciar sesión."
)

// Provider is the part of the auth provider API the service uses. *gotrue.Client implements it.
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*gotrue.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*gotrue.Session, error)
	SignUp(ctx context.Context, email, password string) (*gotrue.Session, error)
	Recover(ctx context.Context, email, redirectTo string) error
}

// AllowList answers whether an email may use the application.
type AllowList interface {
	IsEnabled(ctx context.Context, email string) (bool, error)
}

// Homes maps a module to its landing page.
type Homes interface {
	Home(m model.Module) string
}

type Config struct {
	Demo               bool
	MasterEmail        string
	OdontoEmail        string
	AdminEmail         string
	AdminModuleEnabled bool
	ResetRedirectURL   string
	// DemoPasswordHash, when set, is the bcrypt hash every demo login must match.
	DemoPasswordHash string
}

// Result is a signed-in session and where to send the browser.
type Result struct {
	Identity model.Identity
	Redirect string
}

type Service struct {
	cfg       Config
	providers map[model.Module]Provider
	allow     AllowList
	homes     Homes
	issuer    *auth.TokenIssuer
	hasher    security.PasswordHasher
	calls     *prometheus.CounterVec
	logger    zerolog.Logger
}

// NewService builds the service. providers may be empty in demo mode; issuer may be nil outside
// demo mode.
func NewService(cfg Config, providers map[model.Module]Provider, allow AllowList, homes Homes,
	issuer *auth.TokenIssuer, hasher security.PasswordHasher, m *metrics.Metrics, logger zerolog.Logger) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if hasher == nil {
		hasher = security.NewBcryptHasher(0)
	}
	cfg.MasterEmail = model.NormalizeEmail(cfg.MasterEmail)
	return &Service{
		cfg:       cfg,
		providers: providers,
		allow:     allow,
		homes:     homes,
		issuer:    issuer,
		hasher:    hasher,
		calls:     m.AuthProviderCalls,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

func (s *Service) IsMaster(email string) bool {
	return s.cfg.MasterEmail != "" && model.NormalizeEmail(email) == s.cfg.MasterEmail
}

// ModuleFor resolves the module an email signs into. Only an email configured for the
// administrative module, while that module is enabled, leaves odonto.
func (s *Service) ModuleFor(email string) model.Module {
	email = model.NormalizeEmail(email)
	if s.cfg.AdminModuleEnabled && s.cfg.AdminEmail != "" && email == model.NormalizeEmail(s.cfg.AdminEmail) {
		return model.ModuleAdministrativo
	}
	return model.ModuleOdonto
}

func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.Validation(msgMissingCredentials)
	}
	master := s.IsMaster(email)

	if s.cfg.Demo {
		return s.demoLogin(email, password)
	}

	if !master {
		if err := s.checkAllowed(ctx, email, errors.Forbidden(msgNotAllowed, nil)); err != nil {
			return nil, err
		}
	}

	module := s.ModuleFor(email)
	provider, err := s.provider(module)
	if err != nil {
		return nil, err
	}
	session, err := provider.SignInWithPassword(ctx, email, password)
	s.observe("sign_in", err)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("sign in rejected")
		return nil, loginError(err)
	}

	redirect := s.homes.Home(module)
	if master {
		redirect = MasterHome
	}
	return &Result{Identity: identity(module, session), Redirect: redirect}, nil
}

func (s *Service) demoLogin(email, password string) (*Result, error) {
	if s.cfg.DemoPasswordHash != "" {
		if err := s.hasher.Compare(s.cfg.DemoPasswordHash, password); err != nil {
			if !stderrors.Is(err, security.ErrMismatch) {
				s.logger.Error().Err(err).Msg("demo password hash is not a valid bcrypt hash")
			}
			return nil, errors.Validation(msgInvalidCredentials)
		}
	}
	if s.issuer == nil {
		return nil, errors.Internal(msgBadProviderConfig, fmt.Errorf("demo token issuer missing"))
	}
	token, err := s.issuer.Issue(demoSubject(email), email)
	if err != nil {
		return nil, errors.Internal(msgInvalidCredentials, err)
	}
	return &Result{
		Identity: model.Identity{Module: model.ModuleOdonto, AccessToken: token, RefreshToken: token},
		Redirect: s.homes.Home(model.ModuleOdonto),
	}, nil
}

// demoSubject gives each demo email a stable user id, so records it creates keep their owner
// across logins.
func demoSubject(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("demo:"+email)).String()
}

func (s *Service) Register(ctx context.Context, email, password string) (*Result, error) {
	if s.cfg.Demo {
		return nil, errors.Unavailable(msgRegisterDemo)
	}
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errors.Validation(msgMissingCredentials)
	}
	if len(password) < security.MinPasswordLen {
		return nil, errors.Validation(msgPasswordTooShort).WithField("password", "min")
	}
	if s.IsMaster(email) {
		return nil, errors.Validation(fmt.Sprintf(msgMasterNoRegister, s.cfg.MasterEmail))
	}
	if err := s.checkAllowed(ctx, email, errors.Forbidden(msgRegisterNotAllowed, nil)); err != nil {
		return nil, err
	}

	module := s.ModuleFor(email)
	provider, err := s.provider(module)
	if err != nil {
		return nil, err
	}
	session, err := provider.SignUp(ctx, email, password)
	s.observe("sign_up", err)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", email).Msg("sign up rejected")
		if strings.Contains(providerMessage(err), "already registered") {
			return nil, errors.Validation(msgAlreadyRegistered)
		}
		return nil, errors.Validation(msgRegisterFailed)
	}
	if session == nil {
		return nil, errors.Validation(msgNeedsConfirmation)
	}
	return &Result{Identity: identity(module, session), Redirect: s.homes.Home(module)}, nil
}

// RequestReset mails a password reset link. It returns the normalized email on success.
func (s *Service) RequestReset(ctx context.Context, email string) (string, error) {
	if s.cfg.Demo {
		return "", errors.Unavailable(msgResetDemo)
	}
	email = model.NormalizeEmail(email)
	if email == "" {
		return "", errors.Validation(msgResetEmail).WithField("email", "required")
	}
	if !s.IsMaster(email) {
		if err := s.checkAllowed(ctx, email, errors.Validation(msgResetNotAllowed)); err != nil {
			return "", err
		}
	}

	provider, err := s.provider(s.ModuleFor(email))
	if err != nil {
		return "", err
	}
	err = provider.Recover(ctx, email, s.cfg.ResetRedirectURL)
	s.observe("recover", err)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("reset email not sent")
		return "", errors.Internal(msgResetFailed, err)
	}
	return email, nil
}

// Refresh trades the identity's refresh token for fresh tokens of the same module.
func (s *Service) Refresh(ctx context.Context, id model.Identity) (*model.Identity, error) {
	if s.cfg.Demo {
		email := id.Email()
		if email == "" || s.issuer == nil {
			return nil, errors.Unauthorized(msgSessionExpired)
		}
		token, err := s.issuer.Issue(demoSubject(email), email)
		if err != nil {
			return nil, errors.Internal(msgSessionExpired, err)
		}
		return &model.Identity{Module: id.Module, AccessToken: token, RefreshToken: token}, nil
	}

	provider, err := s.provider(id.Module)
	if err != nil {
		return nil, err
	}
	session, err := provider.RefreshSession(ctx, id.RefreshToken)
	s.observe("refresh", err)
	if err != nil {
		var pe *gotrue.ProviderError
		if stderrors.As(err, &pe) && pe.Status < 500 {
			return nil, errors.Unauthorized(msgSessionExpired)
		}
		return nil, errors.Internal(msgProviderDown, err)
	}
	next := identity(id.Module, session)
	return &next, nil
}

func (s *Service) checkAllowed(ctx context.Context, email string, denied *errors.AppError) error {
	if s.allow == nil {
		return errors.Internal(msgLookupMissing, fmt.Errorf("allow list not wired"))
	}
	ok, err := s.allow.IsEnabled(ctx, email)
	if err != nil {
		s.logger.Error().Err(err).Msg("allow list lookup failed")
		return errors.Fallback(err, msgLookupMissing)
	}
	if !ok {
		return denied
	}
	return nil
}

func (s *Service) provider(m model.Module) (Provider, error) {
	p, ok := s.providers[m]
	if !ok || p == nil {
		return nil, errors.Internal(msgBadProviderConfig, fmt.Errorf("no auth provider for module %s", m))
	}
	return p, nil
}

func (s *Service) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		var pe *gotrue.ProviderError
		if stderrors.As(err, &pe) && pe.Status < 500 {
			outcome = "rejected"
		}
	}
	s.calls.WithLabelValues(op, outcome).Inc()
}

func identity(m model.Module, s *gotrue.Session) model.Identity {
	return model.Identity{Module: m, AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

func providerMessage(err error) string {
	var pe *gotrue.ProviderError
	if stderrors.As(err, &pe) {
		return strings.ToLower(pe.Message)
	}
	return strings.ToLower(err.Error())
}

// loginError turns a sign in failure into the message shown on the login form.
func loginError(err error) error {
	var pe *gotrue.ProviderError
	if !stderrors.As(err, &pe) {
		return errors.Internal(msgProviderDown, err)
	}
	if pe.Status >= 500 {
		return errors.Internal(msgProviderDown, err)
	}
	msg := strings.ToLower(pe.Message)
	switch {
	case pe.Code == "email_provider_disabled" || strings.Contains(msg, "email logins are disabled"):
		return errors.Validation(msgProviderDisabled)
	case strings.Contains(msg, "email not confirmed"):
		return errors.Validation(msgNotConfirmed)
	case strings.Contains(msg, "invalid api key"), strings.Contains(msg, "jwt"):
		return errors.Validation(msgBadProviderConfig)
	default:
		return errors.Validation(msgInvalidCredentials)
	}
}
