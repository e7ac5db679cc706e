package artifact

import (
	"fmt"
	"strings"
)

// Software identifies a server distribution family.
type Software string

const (
	Vanilla  Software = "Vanilla"
	Forge    Software = "Forge"
	NeoForge Software = "NeoForge"
	Fabric   Software = "Fabric"
	Quilt    Software = "Quilt"
	Purpur   Software = "Purpur"
	Paper    Software = "Paper"
	Spigot   Software = "Spigot"
)

var all = []Software{Vanilla, Forge, NeoForge, Fabric, Quilt, Purpur, Paper, Spigot}

// ParseSoftware normalizes a user-supplied software name.
func ParseSoftware(s string) (Software, error) {
	for _, sw := range all {
		if strings.EqualFold(s, string(sw)) {
			return sw, nil
		}
	}
	return "", fmt.Errorf("artifact: unknown software %q", s)
}

// UsesInstaller reports whether the distribution ships as an installer
// that must be run inside the world directory rather than as a ready
// server jar.
func (s Software) UsesInstaller() bool {
	switch s {
	case Forge, Fabric, Quilt:
		return true
	}
	return false
}

// InstallerArgs returns the extra arguments the installer jar takes for
// the given game version.
func (s Software) InstallerArgs(version string) []string {
	switch s {
	case Forge:
		return []string{"--installServer"}
	case Fabric:
		return []string{"server", "-mcversion", version, "-downloadMinecraft"}
	case Quilt:
		return []string{"install", "server", version, "--download-server"}
	}
	return nil
}

// ManifestChecked reports whether the supported-version manifest applies.
// Installer-resolved distributions fetch any version their installer
// knows about, so the local manifest is not consulted for them.
func (s Software) ManifestChecked() bool {
	return s != Fabric && s != Quilt
}

// BukkitFamily groups the distributions that store dimension data under
// separate top-level world directories.
func (s Software) BukkitFamily() bool {
	return s == Purpur || s == Paper
}
