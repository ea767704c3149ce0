package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration against the struct-level validation tags
// and reports the first violation with a readable message.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return fmt.Errorf("invalid value for %s: %q (rule: %s)", e.Namespace(), fmt.Sprint(e.Value()), e.Tag())
		}
		return err
	}

	if cfg.Worker.ReconcileEvery < 0 {
		return fmt.Errorf("worker.reconcile_every must not be negative")
	}
	if cfg.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.token_ttl must not be negative")
	}

	return nil
}
