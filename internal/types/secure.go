package types

// SecretString holds a sensitive value (API keys, connection strings) and
// redacts itself in every accidental output path: fmt verbs, slog fields,
// and JSON marshaling. Use Reveal() at the single point of use.
type SecretString string

const redacted = "[REDACTED]"

// String implements fmt.Stringer with a redacted value.
func (s SecretString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Reveal returns the underlying secret value.
func (s SecretString) Reveal() string {
	return string(s)
}

// IsSet reports whether the secret holds a non-empty value.
func (s SecretString) IsSet() bool {
	return s != ""
}

// MarshalJSON redacts the value in JSON output.
func (s SecretString) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte(`""`), nil
	}
	return []byte(`"` + redacted + `"`), nil
}

// UnmarshalJSON accepts a plain JSON string.
func (s *SecretString) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		*s = SecretString(data[1 : len(data)-1])
		return nil
	}
	*s = SecretString(data)
	return nil
}
