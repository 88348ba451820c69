package config

import (
	"strings"
	"time"
)

// ProviderConfig covers the login/consent provider role: where the admin API
// and the identity provider live, and how decisions are remembered.
type ProviderConfig interface {
	GetAdminURL() string
	GetIdentityProviderURL() string
	GetLoginRemember() bool
	GetLoginRememberFor() time.Duration
	GetLoginACR() string
	GetConsentRemember() bool
	GetConsentRememberFor() time.Duration
	GetDefaultIdentity() DefaultIdentity
}

// DefaultIdentity is attached to consent when no identity was captured at login.
type DefaultIdentity struct {
	Email string
	Name  string
	Roles []string
}

type Provider struct {
	AdminURL           string   `env:"HYDRA_ADMIN_URL" envDefault:"http://hydra:4445"`
	IdentityURL        string   `env:"KRATOS_PUBLIC_URL" envDefault:"http://kratos:4433"`
	LoginRemember      bool     `env:"LOGIN_REMEMBER" envDefault:"true"`
	LoginRememberFor   int      `env:"LOGIN_REMEMBER_FOR" envDefault:"3600"`
	LoginACR           string   `env:"LOGIN_ACR" envDefault:"0"`
	ConsentRemember    bool     `env:"CONSENT_REMEMBER" envDefault:"true"`
	ConsentRememberFor int      `env:"CONSENT_REMEMBER_FOR" envDefault:"3600"`
	DefaultEmail       string   `env:"DEFAULT_IDENTITY_EMAIL" envDefault:"test@example.com"`
	DefaultName        string   `env:"DEFAULT_IDENTITY_NAME" envDefault:"Test User"`
	DefaultRoles       []string `env:"DEFAULT_IDENTITY_ROLES" envDefault:"admin,user" envSeparator:","`
}

var _ ProviderConfig = Provider{}

func (p Provider) GetAdminURL() string {
	return strings.TrimSuffix(p.AdminURL, "/")
}

func (p Provider) GetIdentityProviderURL() string {
	return strings.TrimSuffix(p.IdentityURL, "/")
}

func (p Provider) GetLoginRemember() bool {
	return p.LoginRemember
}

func (p Provider) GetLoginRememberFor() time.Duration {
	return time.Duration(p.LoginRememberFor) * time.Second
}

func (p Provider) GetLoginACR() string {
	return p.LoginACR
}

func (p Provider) GetConsentRemember() bool {
	return p.ConsentRemember
}

func (p Provider) GetConsentRememberFor() time.Duration {
	return time.Duration(p.ConsentRememberFor) * time.Second
}

func (p Provider) GetDefaultIdentity() DefaultIdentity {
	return DefaultIdentity{
		Email: p.DefaultEmail,
		Name:  p.DefaultName,
		Roles: append([]string(nil), p.DefaultRoles...),
	}
}
