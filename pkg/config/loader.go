// Package config loads service configuration in layers: envDefault
// struct tags seed the zero values, an optional YAML or JSON file
// overrides them, and environment variables override everything. That
// ordering matches how the service deploys: defaults live in code,
// files carry per-environment overrides, and the orchestrator injects
// secrets through the environment last.
//
// Three struct tags drive the loader: `env:"VAR"` names the
// environment variable, `envDefault:"v"` fills a zero-valued field,
// and `required:"true"` fails the load when the field stays zero.
// File-based loading goes through the field's yaml or json tags.
//
//	type ServerConfig struct {
//	    Addr        string        `env:"ADDR" envDefault:":8080" yaml:"addr"`
//	    SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"1h" yaml:"session_ttl"`
//	    SigningKey  auth.Secret   `env:"SIGNING_KEY" required:"true" yaml:"-"`
//	}
//
//	cfg := config.MustLoad[ServerConfig](
//	    config.New().WithEnvPrefix("COOKBASE").WithFile("config.yaml"),
//	)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// time.Duration has Kind() == Int64, so the traversal needs its type to
// tell it apart from plain integers and from nested structs.
var durationType = reflect.TypeOf(time.Duration(0))

// Loader carries the file path and env prefix for one Load call. Not
// safe for concurrent use; build one per call.
type Loader struct {
	envPrefix string
	filePath  string
}

// New returns a Loader that reads unprefixed environment variables and
// no file.
func New() *Loader {
	return &Loader{}
}

// WithEnvPrefix prepends prefix plus an underscore to every env tag, so
// WithEnvPrefix("COOKBASE") makes `env:"ADDR"` read COOKBASE_ADDR. The
// prefix is uppercased; empty means no prefixing. Returns the Loader
// for chaining.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile points the loader at a config file, format chosen by
// extension (.yaml/.yml or .json; anything else fails the load). A
// missing file is fine, the file layer is optional. Paths containing
// ".." are rejected. Returns the Loader for chaining.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// Load fills cfg, which must be a non-nil struct pointer: defaults
// first, then file values, then environment variables. Afterwards the
// `required` tags are enforced and, when cfg implements [Validator],
// its Validate runs. Load failures carry
// [cberr.CodeInternalConfiguration]; validation failures carry
// [cberr.CodeValidationRequired] or [cberr.CodeValidation].
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return cberr.New(cberr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()
	if rv.Kind() != reflect.Struct {
		return cberr.New(cberr.CodeInternalConfiguration,
			"config: Load requires a pointer to a struct")
	}

	if err := applyDefaults(rv); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	if err := applyEnv(rv, l.envPrefix); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// MustLoad loads a fresh T and panics on failure. For startup paths
// where a bad config should stop the process:
//
//	cfg := config.MustLoad[ServerConfig](config.New().WithEnvPrefix("COOKBASE"))
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return cberr.New(cberr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return cberr.Wrapf(err, cberr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return cberr.Wrapf(err, cberr.CodeInternalConfiguration,
				"config: failed to parse YAML file %q", l.filePath)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return cberr.Wrapf(err, cberr.CodeInternalConfiguration,
				"config: failed to parse JSON file %q", l.filePath)
		}
	default:
		return cberr.Newf(cberr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	return nil
}

// applyDefaults walks the struct and writes envDefault tag values into
// fields that still hold their zero value.
func applyDefaults(rv reflect.Value) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := applyDefaults(field); err != nil {
				return err
			}
			continue
		}

		tag := sf.Tag.Get("envDefault")
		if tag == "" || !field.IsZero() {
			continue
		}
		if err := setField(field, tag); err != nil {
			return cberr.Wrapf(err, cberr.CodeInternalConfiguration,
				"config: failed to apply default for field %q", sf.Name)
		}
	}
	return nil
}

// applyEnv walks the struct and overwrites fields whose env variable is
// set. A nested struct's own env tag joins the prefix chain, so a
// parent tagged `env:"PROVIDER"` gives its children PROVIDER_* names.
func applyEnv(rv reflect.Value, prefix string) error {
	rt := rv.Type()

	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		envTag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			nested := prefix
			if envTag != "" {
				if nested != "" {
					nested = nested + "_" + envTag
				} else {
					nested = envTag
				}
			}
			if err := applyEnv(field, nested); err != nil {
				return err
			}
			continue
		}

		if envTag == "" {
			continue
		}
		key := envTag
		if prefix != "" {
			key = prefix + "_" + envTag
		}
		val, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setField(field, val); err != nil {
			return cberr.Wrapf(err, cberr.CodeInternalConfiguration,
				"config: failed to set field %q from env var %q", sf.Name, key)
		}
	}
	return nil
}

// setField parses value into the field. Strings (including named string
// types like auth.Secret), bools, signed integers, time.Duration, and
// comma-separated string slices are supported.
func setField(field reflect.Value, value string) error {
	// Duration first: its kind is int64 but the syntax is "10m".
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		// MakeSlice with the field's own type keeps named slice types
		// working; a plain []string would panic on Set.
		slice := reflect.MakeSlice(field.Type(), len(parts), len(parts))
		for i, p := range parts {
			slice.Index(i).SetString(strings.TrimSpace(p))
		}
		field.Set(slice)

	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
