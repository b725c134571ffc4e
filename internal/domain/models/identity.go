package models

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-relay/internal/domain"
)

// Identity names an account that either authorizes transactions (controller)
// or pays for them (sponsor).
type Identity struct {
	Name    string         `json:"name,omitempty"`
	Address common.Address `json:"address"`
}

// ParseIdentity parses an identity reference of the form "name@0xaddr",
// "0xaddr" or "name".
func ParseIdentity(ref string) (Identity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Identity{}, nil
	}

	name, addr, found := strings.Cut(ref, "@")
	if !found {
		if common.IsHexAddress(ref) {
			return Identity{Address: common.HexToAddress(ref)}, nil
		}
		return Identity{Name: ref}, nil
	}

	if !common.IsHexAddress(addr) {
		return Identity{}, fmt.Errorf("invalid address in identity reference %q", ref)
	}
	return Identity{Name: name, Address: common.HexToAddress(addr)}, nil
}

// IsZero reports whether the identity carries no name and no address
func (i Identity) IsZero() bool {
	return i.Name == "" && i.Address == (common.Address{})
}

// HasAddress reports whether the identity resolves to an account
func (i Identity) HasAddress() bool {
	return i.Address != (common.Address{})
}

// Ref returns the identifier sent to external services: the checksummed
// address when known, otherwise the name.
func (i Identity) Ref() string {
	if i.HasAddress() {
		return i.Address.Hex()
	}
	return i.Name
}

func (i Identity) String() string {
	switch {
	case i.Name != "" && i.HasAddress():
		return fmt.Sprintf("%s@%s", i.Name, i.Address.Hex())
	case i.HasAddress():
		return i.Address.Hex()
	default:
		return i.Name
	}
}

// Same reports whether two identities refer to the same account, by
// address when both have one, otherwise by name.
func (i Identity) Same(other Identity) bool {
	if i.HasAddress() && other.HasAddress() {
		return i.Address == other.Address
	}
	return i.Name != "" && strings.EqualFold(i.Name, other.Name)
}

// Identities pairs the controller that signs deployments with the sponsor
// that pays for them.
type Identities struct {
	Controller Identity
	Sponsor    Identity
}

// Validate enforces that both identities are set and never the same account
func (ids Identities) Validate() error {
	if ids.Controller.IsZero() {
		return fmt.Errorf("controller identity is not configured")
	}
	if ids.Sponsor.IsZero() {
		return fmt.Errorf("sponsor identity is not configured")
	}
	if ids.Controller.Same(ids.Sponsor) {
		return fmt.Errorf("%w: both resolve to %s", domain.ErrIdentityConflict, ids.Controller)
	}
	return nil
}
