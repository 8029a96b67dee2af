package types

import "log/slog"

// redacted replaces secret values wherever they would be printed or encoded.
const redacted = "[REDACTED]"

// SecretString holds a sensitive value (API keys, signing secrets) and
// prevents it from leaking through fmt functions, structured logs, or JSON
// encoding. Call Unmask at the point where the raw value is genuinely needed,
// such as building an Authorization header.
type SecretString string

// String implements fmt.Stringer and always returns the redacted placeholder.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON encodes the redacted placeholder instead of the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue implements slog.LogValuer so structured logs never carry the raw value.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether the secret holds a non-empty value.
func (s SecretString) IsSet() bool {
	return s != ""
}
