package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds a credential (database URL, provider API key) and
// renders as a placeholder through fmt and encoding/json. Call Unmask only
// at the point the raw value is handed to a driver or HTTP header.
type SecretString string

// String implements fmt.Stringer.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON implements json.Marshaler.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a non-empty secret was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
