// Package workdir stages per-test copies of the inputs file and manager
// blueprint so a test can patch them without touching the originals.
package workdir

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/liliang-cn/deploytest/pkg/logging"
	"github.com/liliang-cn/deploytest/pkg/types"
)

const (
	// InputsFile is the name of the staged inputs file
	InputsFile = "inputs.yaml"
	// BlueprintDir is the name of the staged blueprint directory
	BlueprintDir = "manager-blueprint"
)

// Staged holds the paths of the copies.
type Staged struct {
	InputsPath string
	// BlueprintPath is empty for provider bootstraps.
	BlueprintPath string
}

// GenerateUniqueConfigurations copies inputsPath to <workdir>/inputs.yaml
// and, unless providerBootstrap is set, the directory holding blueprintPath
// to <workdir>/manager-blueprint. The blueprint target must not exist yet.
func GenerateUniqueConfigurations(workdir, inputsPath, blueprintPath string, providerBootstrap bool) (*Staged, error) {
	logger := logging.GetLogger("workdir")
	done := logging.LogOperationStart(logger, "stage")
	defer done()

	staged := &Staged{InputsPath: filepath.Join(workdir, InputsFile)}
	if err := CopyFile(inputsPath, staged.InputsPath); err != nil {
		return nil, fmt.Errorf("failed to stage inputs: %w", err)
	}
	logger.Debug().Str("src", inputsPath).Str("dst", staged.InputsPath).Msg("Staged inputs")

	if providerBootstrap {
		return staged, nil
	}

	target := filepath.Join(workdir, BlueprintDir)
	if err := CopyTree(filepath.Dir(blueprintPath), target); err != nil {
		return nil, fmt.Errorf("failed to stage blueprint: %w", err)
	}
	staged.BlueprintPath = filepath.Join(target, filepath.Base(blueprintPath))
	logger.Debug().Str("src", blueprintPath).Str("dst", staged.BlueprintPath).Msg("Staged manager blueprint")

	return staged, nil
}

// CopyFile copies a regular file, keeping its permission bits. An existing
// dst is overwritten.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", types.ErrFileNotFound, src)
		}
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return types.NewValidationError("src", src, "is a directory")
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}

// CopyTree recursively copies the directory src to dst, which must not
// exist. Symlinks are followed and their targets copied as regular files
// and directories; a dangling link is an error.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", types.ErrFileNotFound, src)
		}
		return err
	}
	if !info.IsDir() {
		return types.NewValidationError("src", src, "is not a directory")
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: target %s already exists", types.ErrInvalidArguments, dst)
	}

	c := &treeCopier{}
	if err := c.copyDir(src, dst, info); err != nil {
		return err
	}

	// Directories are made writable while copying; restore modes deepest first.
	for i := len(c.dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(c.dirs[i].path, c.dirs[i].mode); err != nil {
			return err
		}
	}
	return nil
}

type dirMode struct {
	path string
	mode fs.FileMode
}

type treeCopier struct {
	dirs []dirMode
	// active holds the resolved directories being copied, to stop on
	// symlink cycles.
	active []string
}

func (c *treeCopier) copyDir(src, dst string, info fs.FileInfo) error {
	resolved, err := filepath.EvalSymlinks(src)
	if err != nil {
		return err
	}
	for _, dir := range c.active {
		if dir == resolved {
			return fmt.Errorf("%w: symlink cycle at %s", types.ErrUnsupportedType, src)
		}
	}
	c.active = append(c.active, resolved)
	defer func() { c.active = c.active[:len(c.active)-1] }()

	c.dirs = append(c.dirs, dirMode{dst, info.Mode().Perm()})
	if err := os.Mkdir(dst, info.Mode().Perm()|0700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		path := filepath.Join(src, entry.Name())
		target := filepath.Join(dst, entry.Name())

		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("%w: dangling symlink %s", types.ErrFileNotFound, path)
			}
			return err
		}

		switch {
		case info.IsDir():
			err = c.copyDir(path, target, info)
		case info.Mode().IsRegular():
			err = CopyFile(path, target)
		default:
			err = fmt.Errorf("%w: cannot copy %s (%s)", types.ErrUnsupportedType, path, info.Mode().Type())
		}
		if err != nil {
			return err
		}
	}
	return nil
}
