// Package validate holds the pure, side-effect-free request validators
// shared by every workload provider before any runtime call is made.
package validate

import (
	"regexp"
	"strings"
	"time"

	"github.com/alibaba/OpenSandbox/internal/apierr"
)

const (
	minPort = 1
	maxPort = 65535

	maxLabelKeyLen        = 253
	maxLabelKeyPrefixLen  = 253
	maxLabelKeyNameLen    = 63
	maxLabelValueLen      = 63
)

var (
	dnsLabel     = `[a-z0-9]([-a-z0-9]*[a-z0-9])?`
	dnsSubdomain = regexp.MustCompile(`^(?:` + dnsLabel + `\.)*` + dnsLabel + `$`)
	labelName    = regexp.MustCompile(`^[A-Za-z0-9]([-A-Za-z0-9_.]*[A-Za-z0-9])?$`)
	labelValue   = regexp.MustCompile(`^([A-Za-z0-9]([-A-Za-z0-9_.]*[A-Za-z0-9])?)?$`)
)

// Entrypoint ensures a sandbox entrypoint carries at least one argv token.
func Entrypoint(entrypoint []string) error {
	if len(entrypoint) == 0 {
		return apierr.New(apierr.InvalidEntrypoint, "entrypoint must contain at least one command")
	}
	return nil
}

// MetadataLabels validates metadata keys/values against Kubernetes label
// rules: split on the first '/', an optional DNS-subdomain prefix, a
// name part matching labelName (key) or labelValue (value, may be empty).
func MetadataLabels(metadata map[string]string) error {
	for key, value := range metadata {
		if !isValidLabelKey(key) {
			return apierr.New(apierr.InvalidMetadataLabel, "metadata key '"+key+"' is not a valid Kubernetes label key")
		}
		if !isValidLabelValue(value) {
			return apierr.New(apierr.InvalidMetadataLabel, "metadata value '"+value+"' is not a valid Kubernetes label value")
		}
	}
	return nil
}

func isValidLabelKey(key string) bool {
	if len(key) > maxLabelKeyLen {
		return false
	}
	name := key
	if idx := strings.Index(key, "/"); idx >= 0 {
		prefix, rest := key[:idx], key[idx+1:]
		if prefix == "" || rest == "" {
			return false
		}
		if len(prefix) > maxLabelKeyPrefixLen || !dnsSubdomain.MatchString(prefix) {
			return false
		}
		name = rest
	}
	return len(name) <= maxLabelKeyNameLen && labelName.MatchString(name)
}

func isValidLabelValue(value string) bool {
	return len(value) <= maxLabelValueLen && labelValue.MatchString(value)
}

// Port ensures a port falls within the 1..65535 inclusive range.
func Port(port int) error {
	if port < minPort || port > maxPort {
		return apierr.New(apierr.InvalidPort, "port must be between 1 and 65535")
	}
	return nil
}

// FutureExpiration normalizes expiresAt to UTC (naive timestamps are
// assumed already UTC) and rejects anything that is not strictly after
// the current time.
func FutureExpiration(expiresAt time.Time) (time.Time, error) {
	normalized := expiresAt.UTC()
	if !normalized.After(time.Now().UTC()) {
		return time.Time{}, apierr.New(apierr.InvalidExpiration, "expiration time must be in the future")
	}
	return normalized, nil
}

// NonBlank rejects a command/argument that is empty or made only of
// whitespace, surfaced by SDK-side pre-flight checks (spec.md §4.H).
func NonBlank(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apierr.New(apierr.InvalidArgument, field+" must not be blank")
	}
	return nil
}
