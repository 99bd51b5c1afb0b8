// Package emailvalidation normalizes and screens email addresses before a
// verification code is requested for them.
package emailvalidation

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

type Reason string

const (
	ReasonNone   Reason = ""
	ReasonFormat Reason = "FORMAT"
	ReasonDomain Reason = "DOMAIN"
)

// DefaultAllowedDomains are the mail providers accepted when none are configured.
var DefaultAllowedDomains = []string{
	"gmail.com",
	"yahoo.com",
	"outlook.com",
	"hotmail.com",
	"icloud.com",
}

// Result is the outcome of Validate. Email holds the normalized address.
type Result struct {
	Valid  bool
	Reason Reason
	Email  string
}

type Validator struct {
	validate *validator.Validate
	domains  map[string]struct{}
}

type Option func(*Validator)

// WithAllowedDomains replaces the domain allow-list. An empty list allows
// every domain.
func WithAllowedDomains(domains []string) Option {
	return func(v *Validator) {
		v.domains = make(map[string]struct{}, len(domains))
		for _, d := range domains {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" {
				v.domains[d] = struct{}{}
			}
		}
	}
}

func New(opts ...Option) *Validator {
	v := &Validator{validate: validator.New()}
	WithAllowedDomains(DefaultAllowedDomains)(v)
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Normalize trims and lowercases an address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate normalizes email, then checks its format and domain.
func (v *Validator) Validate(email string) Result {
	email = Normalize(email)

	if err := v.validate.Var(email, "required,email"); err != nil {
		return Result{Valid: false, Reason: ReasonFormat, Email: email}
	}

	_, domain, _ := strings.Cut(email, "@")
	if len(v.domains) > 0 {
		if _, ok := v.domains[domain]; !ok {
			return Result{Valid: false, Reason: ReasonDomain, Email: email}
		}
	}

	return Result{Valid: true, Email: email}
}
