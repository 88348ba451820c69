package kratos

import (
	"strings"

	"github.com/jrsteele09/go-auth-broker/internal/utils"
)

// Identity is the verified identity returned by a successful login.
type Identity struct {
	ID     string
	Traits map[string]any
}

func (i *Identity) Email() string {
	email, _ := i.Traits["email"].(string)
	return email
}

// Name accepts the name trait either as a string or as {first, last}.
func (i *Identity) Name() string {
	switch name := i.Traits["name"].(type) {
	case string:
		return name
	case map[string]any:
		first, _ := name["first"].(string)
		last, _ := name["last"].(string)
		return strings.TrimSpace(first + " " + last)
	}
	return ""
}

func (i *Identity) Roles() []string {
	return utils.StringList(i.Traits["roles"])
}

// Subject is the identifier asserted to the authorization server: the
// verified email trait, or the identity id when no email is present.
func (i *Identity) Subject() string {
	if email := i.Email(); email != "" {
		return email
	}
	return i.ID
}
