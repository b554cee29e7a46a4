package lib

import (
	"strings"

	"golang.org/x/crypto/ssh"
)

// AuthorizedKey formats pub as a single authorized_keys line, followed by
// comment when it is not empty.
func AuthorizedKey(pub ssh.PublicKey, comment string) string {
	line := strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(pub)), "\n")
	if comment = strings.TrimSpace(comment); comment != "" {
		line += " " + comment
	}
	return line
}
