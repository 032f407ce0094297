package config

// SecretStringValue replaces secrets whenever they are printed.
const SecretStringValue = "<secret>"

// SecretString holds credentials (redis password and such) which must never
// show up in logs, debug reports or dumped configuration.
type SecretString string

// Reveal returns actual value for the code which needs it.
func (s SecretString) Reveal() string {
	return string(s)
}

// String implements fmt.Stringer, so zap.Stringer and %v are masked too.
func (s SecretString) String() string {
	if len(s) == 0 {
		return ""
	}
	return SecretStringValue
}

// MarshalJSON marshals SecretString to JSON making sure that actual value is not visible.
func (s SecretString) MarshalJSON() ([]byte, error) {
	if len(s) == 0 {
		return []byte("null"), nil
	}
	return []byte("\"" + SecretStringValue + "\""), nil
}

// MarshalYAML marshals SecretString to YAML making sure that actual value is not visible.
func (s SecretString) MarshalYAML() (any, error) {
	if len(s) == 0 {
		return nil, nil
	}
	return SecretStringValue, nil
}
