package service

import (
	"strings"

	"github.com/mdouchement/paygate/internal/pgerror"
	"github.com/mdouchement/paygate/pkg/paytx"
)

type (
	// M is an arbitrary map.
	M map[string]any

	// A Render is an arbitrary payload serializable in JSON by the API.
	Render any

	// Params are the basic fields used in requests.
	Params struct {
		// Address of the requester, optional on most endpoints.
		Address string `json:"-"`
	}
)

// Validate normalizes the requester address and checks its format.
func (p *Params) Validate(required bool) error {
	p.Address = strings.ToLower(strings.TrimSpace(p.Address))
	if p.Address == "" {
		if required {
			return pgerror.InvalidParameters("Missing address.")
		}
		return nil
	}

	if !paytx.IsAddress(p.Address) {
		return pgerror.InvalidParameters("Invalid address.")
	}
	return nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
