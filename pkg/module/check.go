package module

import (
	"fmt"
	"os"

	"github.com/vulntor/xploit/pkg/console"
)

const directoryPerm = 0o750

// CheckRequiredProperties validates every property of entity. It reports
// the first required property left unset, then enforces the filesystem
// kinds: file properties must name an existing file, directory properties
// must name a directory, which is created after confirmation through io
// when absent. Unset optional properties are skipped.
func CheckRequiredProperties(entity Entity, io *console.Layer) error {
	if entity == nil {
		return nil
	}
	for _, p := range entity.Core().schema.Properties() {
		if !p.IsSet() {
			if p.Required {
				return missing(p.Name)
			}
			continue
		}

		switch p.Kind {
		case KindFile:
			if err := checkFile(p); err != nil {
				return err
			}
		case KindDirectory:
			if err := ensureDirectory(p, io); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkFile(p *Property) error {
	path := p.Display()
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return &ValidationError{Property: p.Name, Path: path, Err: ErrFileNotFound}
	}
	return nil
}

func ensureDirectory(p *Property, io *console.Layer) error {
	path := p.Display()
	info, err := os.Stat(path)
	if err == nil && info.IsDir() {
		return nil
	}
	if err == nil {
		return &ValidationError{Property: p.Name, Path: path, Err: fmt.Errorf("%w: not a directory", ErrDirectoryRequired)}
	}

	if !io.Confirm(fmt.Sprintf("Directory %q does not exist. Create it? [y/N]", path)) {
		return &ValidationError{Property: p.Name, Path: path, Err: ErrDirectoryRequired}
	}
	if err := os.MkdirAll(path, directoryPerm); err != nil {
		return &ValidationError{Property: p.Name, Path: path, Err: fmt.Errorf("%w: %v", ErrDirectoryRequired, err)}
	}
	io.WriteInfo(fmt.Sprintf("Created directory %s", path))
	return nil
}
