package world

import (
	"fmt"
	"regexp"
)

// Kind addresses the script package that implements an object's behavior.
// The textual form is user[/repo].package, e.g. "system.room" or
// "alice/live.user". Everything up to the first dot is the package root,
// which for system packages corresponds to a directory on disk.
type Kind struct {
	User    string
	Repo    string // empty when the reference has no repo component
	Package string
}

// Only a single dot-delimited package component is supported for now
// (system.foo, not system.foo.bar).
var kindRE = regexp.MustCompile(`^(\w+)(?:/(\w+))?\.(\w+)$`)

func ParseKind(s string) (Kind, error) {
	m := kindRE.FindStringSubmatch(s)
	if m == nil {
		return Kind{}, fmt.Errorf("invalid package reference %q", s)
	}
	return Kind{User: m[1], Repo: m[2], Package: m[3]}, nil
}

func (k Kind) String() string {
	if k.Repo == "" {
		return k.User + "." + k.Package
	}
	return k.User + "/" + k.Repo + "." + k.Package
}

// PackageRoot is user[/repo]; it scopes filesystem access for system
// packages and ownership for live packages.
func (k Kind) PackageRoot() string {
	if k.Repo == "" {
		return k.User
	}
	return k.User + "/" + k.Repo
}

const systemPackageRoot = "system"

func (k Kind) IsSystem() bool { return k.PackageRoot() == systemPackageRoot }

// IsLive reports whether this kind is stored in-world and editable at
// runtime by its owning user.
func (k Kind) IsLive() bool { return k.Repo == "live" }

func SystemKind(name string) Kind {
	return Kind{User: systemPackageRoot, Package: name}
}

// RoomKind is the kind of the entrance room and other plain rooms.
func RoomKind() Kind { return SystemKind("room") }

// UserKind is the live package owning a user's behavior, e.g. "alice/live.user".
func UserKind(username string) Kind {
	return Kind{User: username, Repo: "live", Package: "user"}
}
