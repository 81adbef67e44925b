package client

import "fmt"

// SchemaVersion is an immutable (major, minor, patch) triple. Equality is
// componentwise; two versions are Compatible iff their major components
// match, regardless of minor/patch.
type SchemaVersion struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// Equal reports componentwise equality.
func (v SchemaVersion) Equal(other SchemaVersion) bool {
	return v.Major == other.Major && v.Minor == other.Minor && v.Patch == other.Patch
}

// IsCompatible reports whether v and other share the same major version.
// Compatibility is reflexive and symmetric: equal versions are always
// compatible.
func (v SchemaVersion) IsCompatible(other SchemaVersion) bool {
	return v.Major == other.Major
}

// String renders "major.minor.patch".
func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// CurrentSchemaVersion is the process-level schema version this client
// library negotiates with a server. It is a var, not a const, so tests (and
// callers embedding this module in a build with its own version stamping)
// can override it explicitly per Design Notes §9 rather than relying on a
// compiled-in constant.
var CurrentSchemaVersion = SchemaVersion{Major: 1, Minor: 0, Patch: 0}

// negotiateVersion implements the registerClient acceptance ladder: absence
// of a server version is accepted with a warning, equal versions are
// accepted silently, compatible-but-unequal versions are accepted with an
// informational note, and incompatible versions are rejected.
//
// serverVersion == nil means the response carried no server_schema_version.
func negotiateVersion(current SchemaVersion, serverVersion *SchemaVersion) (ok bool, note string) {
	if serverVersion == nil {
		return true, "server proto schema version not known"
	}
	if current.Equal(*serverVersion) {
		return true, ""
	}
	if current.IsCompatible(*serverVersion) {
		return true, fmt.Sprintf("server and client proto schema versions are compatible: server=%s client=%s",
			serverVersion.String(), current.String())
	}
	return false, fmt.Sprintf("server and client proto schema versions are not compatible: server=%s client=%s",
		serverVersion.String(), current.String())
}
