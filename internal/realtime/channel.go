package realtime

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
)

// ChannelKind discriminates the channel variants.
type ChannelKind string

const (
	KindUser       ChannelKind = "user"
	KindRole       ChannelKind = "role"
	KindRoleBranch ChannelKind = "role_branch"
	KindBranch     ChannelKind = "branch"
)

// ErrInvalidChannel is returned by ParseChannel for malformed names.
var ErrInvalidChannel = errors.New("realtime: invalid channel")

// Channel is a named delivery group. Only the fields relevant to Kind are set.
type Channel struct {
	Kind     ChannelKind
	UserID   string
	Role     models.Role
	BranchID string
}

func UserChannel(userID string) Channel {
	return Channel{Kind: KindUser, UserID: userID}
}

func RoleChannel(role models.Role) Channel {
	return Channel{Kind: KindRole, Role: role}
}

func RoleBranchChannel(role models.Role, branchID string) Channel {
	return Channel{Kind: KindRoleBranch, Role: role, BranchID: branchID}
}

func BranchChannel(branchID string) Channel {
	return Channel{Kind: KindBranch, BranchID: branchID}
}

// String renders the wire name, for example "role:DENTIST:branch:b1".
func (c Channel) String() string {
	switch c.Kind {
	case KindUser:
		return "user:" + c.UserID
	case KindRole:
		return "role:" + string(c.Role)
	case KindRoleBranch:
		return "role:" + string(c.Role) + ":branch:" + c.BranchID
	case KindBranch:
		return "branch:" + c.BranchID
	}
	return ""
}

// Valid reports whether every field required by Kind is present.
func (c Channel) Valid() bool {
	switch c.Kind {
	case KindUser:
		return c.UserID != ""
	case KindRole:
		return c.Role != ""
	case KindRoleBranch:
		return c.Role != "" && c.BranchID != ""
	case KindBranch:
		return c.BranchID != ""
	}
	return false
}

// ParseChannel is the inverse of Channel.String. Case is preserved.
func ParseChannel(name string) (Channel, error) {
	name = strings.TrimSpace(name)
	prefix, rest, ok := strings.Cut(name, ":")
	if !ok || rest == "" {
		return Channel{}, fmt.Errorf("%w: %q", ErrInvalidChannel, name)
	}

	var ch Channel
	switch prefix {
	case "user":
		ch = UserChannel(rest)
	case "branch":
		ch = BranchChannel(rest)
	case "role":
		role, tail, scoped := strings.Cut(rest, ":")
		if !scoped {
			ch = RoleChannel(models.Role(role))
			break
		}
		branchID, found := strings.CutPrefix(tail, "branch:")
		if !found {
			return Channel{}, fmt.Errorf("%w: %q", ErrInvalidChannel, name)
		}
		ch = RoleBranchChannel(models.Role(role), branchID)
	default:
		return Channel{}, fmt.Errorf("%w: %q", ErrInvalidChannel, name)
	}

	if !ch.Valid() {
		return Channel{}, fmt.Errorf("%w: %q", ErrInvalidChannel, name)
	}
	return ch, nil
}

// Identity is the authenticated principal behind a session, resolved from the
// live user store at handshake time.
type Identity struct {
	UserID   string      `json:"userId"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	BranchID string      `json:"branchId"`
}

// EnrollmentChannels returns the fixed channels a session joins at connect
// time: user, role within branch, role, branch. The order is stable.
func EnrollmentChannels(id Identity) []Channel {
	return []Channel{
		UserChannel(id.UserID),
		RoleBranchChannel(id.Role, id.BranchID),
		RoleChannel(id.Role),
		BranchChannel(id.BranchID),
	}
}

// CanSubscribe decides whether id may join ch as an ad hoc subscription.
func CanSubscribe(id Identity, ch Channel) bool {
	if id.Role == models.RoleAdmin {
		return true
	}
	switch ch.Kind {
	case KindUser:
		return ch.UserID == id.UserID
	case KindRoleBranch:
		return ch.Role == id.Role && ch.BranchID == id.BranchID
	case KindBranch:
		return ch.BranchID == id.BranchID
	}
	return false
}
