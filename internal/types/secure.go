package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values (broker passwords, gateway keys, DSNs).
// String() and MarshalJSON() return a redacted placeholder; Unmask() retrieves
// the raw value for the few call sites that genuinely need it.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
// Invoked by fmt.Sprintf, fmt.Println, and anything using fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string so secrets
// never appear in serialized config dumps or structured log entries.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Call sites should be
// limited to constructing connection strings and Authorization headers.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether the secret holds a non-empty value.
func (s SecretString) IsSet() bool {
	return len(s) > 0
}
