package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/httpbl/internal/httpbl/common/utils"
)

// envPrefix is stripped from every environment variable before mapping.
const envPrefix = "HTTPBL_"

// sections lists the nested config blocks. An environment key starting with
// one of these followed by an underscore is mapped into that block, so
// HTTPBL_POLICY_TYPE_SEVERITY becomes policy.type_severity.
var sections = []string{"log", "service", "resolver", "policy"}

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	Log      LoggingConfig  `koanf:"log"`
	Service  ServiceConfig  `koanf:"service"`
	Resolver ResolverConfig `koanf:"resolver"`
	Policy   PolicyConfig   `koanf:"policy"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level controls log verbosity: "debug", "info", "warn", or "error".
	Level string `koanf:"level" validate:"required,oneof=debug info warn error"`
}

// ServiceConfig identifies the HTTP:BL account and query zone.
type ServiceConfig struct {
	// Key is the 12 character Project Honey Pot access key.
	Key string `koanf:"key" validate:"required,access_key"`

	// Domain is the DNS zone queries are made under.
	Domain string `koanf:"domain" validate:"required,service_domain"`
}

// ResolverConfig selects how query names are resolved.
type ResolverConfig struct {
	// Transport is one of "system", "udp", "tcp" or "tcp-tls".
	Transport string `koanf:"transport" validate:"required,oneof=system udp tcp tcp-tls"`

	// Servers is a list of DNS servers in ip:port format. Unused by the
	// system transport.
	Servers []string `koanf:"servers" validate:"required_unless=Transport system,dive,ip_port"`

	// Timeout bounds each lookup.
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`

	// Parallel queries every server at once and takes the first answer.
	// Only the udp transport honors it.
	Parallel bool `koanf:"parallel"`
}

// PolicyConfig holds the allow/deny thresholds.
type PolicyConfig struct {
	Threat       int `koanf:"threat" validate:"gte=0,lte=255"`
	TypeSeverity int `koanf:"type_severity" validate:"gte=0,lte=255"`
}

// DEFAULT_APP_CONFIG defines the default application configuration. It has no
// access key, so one must always be supplied through the environment.
var DEFAULT_APP_CONFIG = AppConfig{
	Env: "prod",
	Log: LoggingConfig{Level: "info"},
	Service: ServiceConfig{
		Domain: "dnsbl.httpbl.org",
	},
	Resolver: ResolverConfig{
		Transport: "system",
		Servers:   []string{"1.1.1.1:53", "1.0.0.1:53"},
		Timeout:   2 * time.Second,
	},
	Policy: PolicyConfig{
		Threat:       20,
		TypeSeverity: 2,
	},
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
// It expects the value to be in the format "IP:Port".
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	if net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// validAccessKey accepts exactly twelve lowercase ASCII letters.
func validAccessKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	if len(key) != 12 {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] < 'a' || key[i] > 'z' {
			return false
		}
	}
	return true
}

// validServiceDomain requires a name below a registrable domain, so bare
// public suffixes like "org" are rejected.
func validServiceDomain(fl validator.FieldLevel) bool {
	_, err := utils.RegisteredDomain(fl.Field().String())
	return err == nil
}

// envKey maps a prefixed environment variable name to its koanf path.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	for _, s := range sections {
		if rest, ok := strings.CutPrefix(key, s+"_"); ok {
			return s + "." + rest
		}
	}
	return key
}

// envLoader loads environment variables with the prefix "HTTPBL_" and can be
// mocked in tests. Values containing spaces or commas become lists.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = envKey(key)
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom tags used by AppConfig.
var registerValidation = func(v *validator.Validate) error {
	for tag, fn := range map[string]validator.Func{
		"ip_port":        validIPPort,
		"access_key":     validAccessKey,
		"service_domain": validServiceDomain,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
