package confine

// Version information for the confinement checker.
const (
	// Version is the current version of the checker runtime.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about the checker.
type Info struct {
	// Version is the runtime version string.
	Version string

	// Enabled reports whether the checker is compiled in.
	Enabled bool
}

// GetInfo returns information about the checker runtime.
//
// Example:
//
//	info := confine.GetInfo()
//	fmt.Printf("confine %s (enabled=%v)\n", info.Version, info.Enabled)
func GetInfo() Info {
	return Info{
		Version: Version,
		Enabled: Enabled,
	}
}
