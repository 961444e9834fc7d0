package config

import (
	"reflect"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// Validator lets a config struct check constraints the tags cannot
// express. When the struct passed to [Loader.Load] implements it,
// Validate runs after the `required` tags pass. Coded errors come back
// unchanged; anything else is wrapped with [cberr.CodeValidation].
//
//	func (c *IssuerConfig) Validate() error {
//	    if len(c.SigningKey.Value()) < 32 {
//	        return cberr.New(cberr.CodeValidation,
//	            "config: signing key must be at least 32 bytes")
//	    }
//	    return nil
//	}
type Validator interface {
	Validate() error
}

// validate enforces `required` tags on rv, then runs the custom
// Validator if cfg implements one.
func validate(cfg any, rv reflect.Value) error {
	if err := validateRequired(rv, ""); err != nil {
		return err
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			if _, coded := cberr.AsError(err); coded {
				return err
			}
			return cberr.Wrap(err, cberr.CodeValidation,
				"config: custom validation failed")
		}
	}
	return nil
}

// validateRequired walks the struct, carrying the dotted field path so
// the failure names the exact field ("Provider.ClientID").
func validateRequired(rv reflect.Value, path string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		fieldPath := sf.Name
		if path != "" {
			fieldPath = path + "." + sf.Name
		}

		if field.Kind() == reflect.Struct {
			if err := validateRequired(field, fieldPath); err != nil {
				return err
			}
			continue
		}

		if sf.Tag.Get("required") != "true" {
			continue
		}
		if field.IsZero() {
			return cberr.Newf(cberr.CodeValidationRequired,
				"config: required field %q is empty", fieldPath)
		}
	}
	return nil
}
