package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/emrgen/digidoc/internal/model"
)

// Authentication happens in front of this service; the gateway forwards the caller in these headers.
const (
	HeaderPrincipalID   = "X-Principal-Id"
	HeaderPrincipalRole = "X-Principal-Role"
)

var errUnauthenticated = fmt.Errorf("missing %s header", HeaderPrincipalID)

func principalFromRequest(r *http.Request) (model.Principal, error) {
	id := strings.TrimSpace(r.Header.Get(HeaderPrincipalID))
	if id == "" {
		return model.Principal{}, errUnauthenticated
	}

	role := model.Role(strings.TrimSpace(r.Header.Get(HeaderPrincipalRole)))
	switch role {
	case "":
		role = model.RoleViewer
	case model.RoleAdmin, model.RoleManager, model.RoleOperator, model.RoleViewer:
	default:
		// System is reserved for policy driven transitions inside the process.
		return model.Principal{}, fmt.Errorf("%w: unknown role %q", model.ErrGuardFailed, role)
	}

	return model.Principal{ID: id, Role: role}, nil
}
