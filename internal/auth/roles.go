package auth

import "strings"

// Role is the sole authorization signal carried by an identity.
type Role string

const (
	RoleClinician     Role = "clinician"
	RolePatient       Role = "patient"
	RoleAdministrator Role = "administrator"
)

// ParseRole normalizes a role string and reports whether it is known.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.TrimSpace(strings.ToLower(raw))) {
	case RoleClinician:
		return RoleClinician, true
	case RolePatient:
		return RolePatient, true
	case RoleAdministrator:
		return RoleAdministrator, true
	default:
		return "", false
	}
}

// Capability is a coarse-grained permission derived from a role.
type Capability string

const (
	CapAppointmentsManage Capability = "appointments:manage"
	CapAppointmentsOwn    Capability = "appointments:own"
	CapMessagesSend       Capability = "messages:send"
	CapRecordsRead        Capability = "records:read"
	CapUsersAdminister    Capability = "users:administer"
)

// Capabilities maps a role to its capability set. Pure function, no state.
func Capabilities(role Role) map[Capability]struct{} {
	set := func(caps ...Capability) map[Capability]struct{} {
		m := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			m[c] = struct{}{}
		}
		return m
	}
	switch role {
	case RoleClinician:
		return set(CapAppointmentsManage, CapMessagesSend, CapRecordsRead)
	case RolePatient:
		return set(CapAppointmentsOwn, CapMessagesSend)
	case RoleAdministrator:
		return set(CapAppointmentsManage, CapMessagesSend, CapRecordsRead, CapUsersAdminister)
	default:
		return map[Capability]struct{}{}
	}
}

// HasCapability reports whether the role grants the capability.
func HasCapability(role Role, cap Capability) bool {
	_, ok := Capabilities(role)[cap]
	return ok
}
