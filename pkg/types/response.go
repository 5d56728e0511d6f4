package types

// SuccessEnvelope wraps every successful payload.
type SuccessEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorEnvelope is the failure shape: a short human-readable message plus the machine code.
type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	Debug   any    `json:"debug,omitempty"`
}
