package gcp

import (
	"os"
	"strings"

	"google.golang.org/api/option"
)

// CredentialOptions turns a credentials setting into client options. The
// value may be inline service account JSON or a path to one. Empty falls
// back to application default credentials.
func CredentialOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}

func credentialsFromEnv() []option.ClientOption {
	if inline := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"); strings.TrimSpace(inline) != "" {
		return CredentialOptions(inline)
	}
	return CredentialOptions(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
}
