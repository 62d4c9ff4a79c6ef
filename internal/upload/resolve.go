package upload

import (
	"path/filepath"
	"strconv"
	"strings"

	"dirdrop/internal/fsutil"
)

// ResolveFilename returns candidate if nothing exists there, otherwise the
// first free "<stem>-<n><ext>" for n = 1, 2, ... The extension is the part of
// the base name from its last dot; a name without one (or a dotfile such as
// ".env") gets the suffix appended at the end.
//
// The check is not atomic with the later create: two uploads racing for the
// same name can both be handed the same path.
func ResolveFilename(fsys fsutil.FS, candidate string) string {
	if !fsutil.Exists(fsys, candidate) {
		return candidate
	}
	dir, base := filepath.Split(candidate)
	stem, ext := splitExt(base)
	for n := 1; ; n++ {
		p := dir + stem + "-" + strconv.Itoa(n) + ext
		if !fsutil.Exists(fsys, p) {
			return p
		}
	}
}

func splitExt(base string) (stem, ext string) {
	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return base, ""
	}
	return base[:i], base[i:]
}
