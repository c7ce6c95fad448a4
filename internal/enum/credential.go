package enum

type CredentialStatus string

const (
	CredentialHealthy CredentialStatus = "healthy"
	CredentialExpired CredentialStatus = "expired"
	CredentialInvalid CredentialStatus = "invalid"
	CredentialUnknown CredentialStatus = "unknown"
)

func (t CredentialStatus) String() string {
	return string(t)
}

func GetCredentialStatus(s string) CredentialStatus {
	switch CredentialStatus(s) {
	case CredentialHealthy, CredentialExpired, CredentialInvalid:
		return CredentialStatus(s)
	default:
		return CredentialUnknown
	}
}
