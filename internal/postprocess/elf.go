package postprocess

import (
	"debug/elf"
	"os"
	"path/filepath"
	"sort"
)

// NeededLibraries returns the shared objects an ELF file declares as DT_NEEDED
func NeededLibraries(path string) ([]string, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return f.ImportedLibraries()
}

// LibraryClosure returns root and every library of searchDir it needs,
// directly or transitively. Libraries not found in searchDir are provided by
// the system and left out. The root comes first, the rest sorted by name.
func LibraryClosure(root, searchDir string) ([]string, error) {
	visited := map[string]bool{filepath.Base(root): true}
	queue := []string{root}
	var found []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		needed, err := NeededLibraries(current)
		if err != nil {
			return nil, err
		}

		for _, name := range needed {
			if visited[name] {
				continue
			}

			visited[name] = true

			candidate := filepath.Join(searchDir, name)
			if _, err := os.Stat(candidate); err != nil {
				continue
			}

			found = append(found, candidate)
			queue = append(queue, candidate)
		}
	}

	sort.Strings(found)
	return append([]string{root}, found...), nil
}
