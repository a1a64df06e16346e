package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Role is a 32-byte role identifier.
type Role common.Hash

var (
	// AdminRole is the all-zero identifier; it administers every role.
	AdminRole = Role{}
	// UpgraderRole may authorize logic upgrades.
	UpgraderRole = Role(crypto.Keccak256Hash([]byte("UPGRADER_ROLE")))
)

// Roles lists the known roles.
func Roles() []Role {
	return []Role{AdminRole, UpgraderRole}
}

// Hex returns the 0x-prefixed identifier.
func (r Role) Hex() string {
	return common.Hash(r).Hex()
}

func (r Role) String() string {
	switch r {
	case AdminRole:
		return "DEFAULT_ADMIN_ROLE"
	case UpgraderRole:
		return "UPGRADER_ROLE"
	default:
		return r.Hex()
	}
}

// ParseRole accepts a role name (admin, upgrader, DEFAULT_ADMIN_ROLE, UPGRADER_ROLE)
// or a 32-byte hex identifier.
func ParseRole(input string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "admin", "default_admin_role":
		return AdminRole, nil
	case "upgrader", "upgrader_role":
		return UpgraderRole, nil
	}
	data, err := hexutil.Decode(strings.TrimSpace(input))
	if err != nil || len(data) != common.HashLength {
		return Role{}, fmt.Errorf("invalid role: %s", input)
	}
	return Role(common.BytesToHash(data)), nil
}
