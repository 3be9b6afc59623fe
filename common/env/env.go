package env

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
)

const ApplicationEnvKey = "ENVIRONMENT"

// Environment represents the application deployment environment
type Environment string

const (
	EnvironmentLocal       Environment = "local"
	EnvironmentLocalDocker Environment = "local-docker"
	EnvironmentDevelopment Environment = "development"
	EnvironmentStaging     Environment = "staging"
	EnvironmentProduction  Environment = "production"
)

var supported = []Environment{
	EnvironmentLocal,
	EnvironmentLocalDocker,
	EnvironmentDevelopment,
	EnvironmentStaging,
	EnvironmentProduction,
}

func (e Environment) String() string { return string(e) }

// IsLocal reports whether e runs on a developer machine.
func (e Environment) IsLocal() bool {
	return e == EnvironmentLocal || e == EnvironmentLocalDocker
}

// Grace holds the default shutdown grace periods for an environment.
type Grace struct {
	NewConnections time.Duration
	Drain          time.Duration
}

// DefaultGrace returns the shutdown grace periods used when configuration omits them.
// Deployed environments wait for load balancers to stop routing before draining;
// local runs exit quickly.
func (e Environment) DefaultGrace() Grace {
	if e.IsLocal() {
		return Grace{Drain: 5 * time.Second}
	}
	return Grace{
		NewConnections: 5 * time.Second,
		Drain:          30 * time.Second,
	}
}

func IsEnvironmentValid(environment string) error {
	if slices.Contains(supported, Environment(environment)) {
		return nil
	}

	names := make([]string, 0, len(supported))
	for _, e := range supported {
		names = append(names, e.String())
	}

	return fmt.Errorf("invalid environment: %s must be set to one of %s", ApplicationEnvKey, strings.Join(names, ", "))
}

func FromString(environment string) (Environment, error) {
	if err := IsEnvironmentValid(environment); err != nil {
		return "", err
	}
	return Environment(environment), nil
}

// GetApplicationEnv returns the environment if found in env vars and is valid
func GetApplicationEnv() (Environment, error) {
	return FromString(os.Getenv(ApplicationEnvKey))
}

// GetApplicationEnvOrDefault returns the environment if found, else defaults to the specified env
func GetApplicationEnvOrDefault(defaultEnv Environment) Environment {
	e, err := GetApplicationEnv()
	if err != nil {
		return defaultEnv
	}
	return e
}

// GetApplicationEnvSafe returns the environment if found, else defaults to EnvironmentLocal
func GetApplicationEnvSafe() Environment {
	return GetApplicationEnvOrDefault(EnvironmentLocal)
}

func IsLocalApplicationEnv() bool {
	return GetApplicationEnvSafe().IsLocal()
}
