// Package system groups capabilities that touch the local or a remote
// operating system.
package system

// Host identifies where a system capability operates. Credentials names a
// secret resource holding SSH credentials for remote hosts.
type Host struct {
	URL         string `json:"url,omitempty"`
	Credentials string `json:"credentials,omitempty"`
}
