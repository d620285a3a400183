package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// MachineID retrieves an ID identifying this host for an application.
// It falls back to the hostname if the machine ID is unavailable.
func MachineID(appID string) string {
	id, err := machineid.ProtectedID(appID)
	if err == nil {
		return id[:12]
	}
	host, herr := os.Hostname()
	if herr != nil {
		panic(herr)
	}
	return host
}
