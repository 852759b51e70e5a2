package gcp

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

var ErrArchiveEndpoint = errors.New("invalid archive endpoint")

// ArchiveEndpoint selects where the document archive writes. An empty
// EmulatorURL means the real GCS API with ambient credentials.
type ArchiveEndpoint struct {
	EmulatorURL string
	// Implied is set when the emulator was picked up from
	// STORAGE_EMULATOR_HOST without ARCHIVE_TARGET naming it.
	Implied bool
}

func (e ArchiveEndpoint) Emulated() bool { return e.EmulatorURL != "" }

func (e ArchiveEndpoint) String() string {
	if !e.Emulated() {
		return "gcs"
	}
	return "emulator(" + e.EmulatorURL + ")"
}

func ArchiveEndpointFromEnv() (ArchiveEndpoint, error) {
	return ParseArchiveEndpoint(os.Getenv("ARCHIVE_TARGET"), os.Getenv("STORAGE_EMULATOR_HOST"))
}

// ParseArchiveEndpoint accepts target "gcs", "emulator" or empty. Empty
// follows emulatorHost when one is set.
func ParseArchiveEndpoint(target, emulatorHost string) (ArchiveEndpoint, error) {
	host := strings.TrimRight(strings.TrimSpace(emulatorHost), "/")
	switch strings.ToLower(strings.TrimSpace(target)) {
	case "gcs":
		return ArchiveEndpoint{}, nil
	case "emulator":
	case "":
		if host == "" {
			return ArchiveEndpoint{}, nil
		}
		ep, err := checkEmulator(host)
		ep.Implied = true
		return ep, err
	default:
		return ArchiveEndpoint{}, fmt.Errorf("%w: unknown target %q", ErrArchiveEndpoint, target)
	}
	return checkEmulator(host)
}

func checkEmulator(host string) (ArchiveEndpoint, error) {
	if host == "" {
		return ArchiveEndpoint{}, fmt.Errorf("%w: emulator target needs STORAGE_EMULATOR_HOST", ErrArchiveEndpoint)
	}
	u, err := url.Parse(host)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ArchiveEndpoint{}, fmt.Errorf("%w: emulator host %q is not an absolute url", ErrArchiveEndpoint, host)
	}
	return ArchiveEndpoint{EmulatorURL: host}, nil
}
