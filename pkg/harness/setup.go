package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
)

// SetupOptions configures Setup.
type SetupOptions struct {
	// ExtraFiles lists files to link into the module directory for the
	// harness lifetime, absolute or relative to the base directory.
	// Missing files and name collisions are logged and skipped.
	ExtraFiles []string

	// Workspace selects (creating when needed) a workspace after init.
	Workspace string

	// DisablePreventDestroy rewrites prevent_destroy lifecycle flags to
	// false before init, restoring the originals on Close.
	DisablePreventDestroy bool

	// Init configures the init run that concludes setup.
	Init InitOptions
}

// Setup prepares the module directory for testing: fixture files are
// linked in, destroy prevention is optionally lifted, init runs, and the
// requested workspace is selected. Returns the init output (with the
// workspace command's output appended when one was requested). Call Close
// to undo what Setup did.
func (h *Harness) Setup(ctx context.Context, opts SetupOptions) (string, error) {
	h.linkExtraFiles(opts.ExtraFiles)

	if opts.DisablePreventDestroy {
		if err := h.DisablePreventDestroy(); err != nil {
			return "", err
		}
	}

	out, err := h.Init(ctx, opts.Init)
	if err != nil {
		return "", err
	}

	if opts.Workspace != "" {
		wsOut, err := h.Workspace(ctx, opts.Workspace)
		if err != nil {
			return "", err
		}
		out += wsOut
	}
	return out, nil
}

// linkExtraFiles links each fixture file into the module directory under
// its base name. Symlinks on unixes, copies on windows. Problems with an
// individual file are warnings, never failures; the remaining files are
// still linked.
func (h *Harness) linkExtraFiles(files []string) {
	for _, src := range files {
		src = h.abspath(src)
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			h.logger.Warnf("no such file %s, skipping", src)
			continue
		}
		name := filepath.Base(src)
		dst := filepath.Join(h.dir, name)

		if err := linkOrCopy(src, dst); err != nil {
			if errors.Is(err, fs.ErrExist) {
				h.logger.Warnf("%s already exists in %s, skipping", name, h.dir)
			} else {
				h.logger.WithError(err).Warnf("could not link %s, skipping", src)
			}
			continue
		}
		h.logger.Debugf("linked %s", src)
		h.linked = append(h.linked, name)
	}
}

func linkOrCopy(src, dst string) error {
	if runtime.GOOS != "windows" {
		return os.Symlink(src, dst)
	}
	if _, err := os.Lstat(dst); err == nil {
		return fs.ErrExist
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// preventDestroyPattern matches an enabled prevent_destroy lifecycle flag.
var preventDestroyPattern = regexp.MustCompile(`(prevent_destroy\s*=\s*)true`)

// backupSuffix marks configuration files saved before a prevent_destroy
// rewrite.
const backupSuffix = ".tfharness-backup"

// DisablePreventDestroy rewrites every "prevent_destroy = true" in the
// module's .tf files to false so a test can tear down resources the
// configuration normally protects. Originals are backed up next to the
// rewritten files and restored by RestorePreventDestroy or Close.
func (h *Harness) DisablePreventDestroy() error {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		return fmt.Errorf("reading module directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tf") {
			continue
		}
		path := filepath.Join(h.dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if !preventDestroyPattern.Match(data) {
			continue
		}

		backup := path + backupSuffix
		if err := os.WriteFile(backup, data, 0o644); err != nil {
			return fmt.Errorf("backing up %s: %w", path, err)
		}
		rewritten := preventDestroyPattern.ReplaceAll(data, []byte("${1}false"))
		if err := os.WriteFile(path, rewritten, 0o644); err != nil {
			return fmt.Errorf("rewriting %s: %w", path, err)
		}
		h.logger.Debugf("disabled prevent_destroy in %s", path)
		h.backups = append(h.backups, backup)
	}
	return nil
}

// RestorePreventDestroy puts back the configuration files rewritten by
// DisablePreventDestroy.
func (h *Harness) RestorePreventDestroy() error {
	var errs []error
	for _, backup := range h.backups {
		original := strings.TrimSuffix(backup, backupSuffix)
		if err := os.Rename(backup, original); err != nil {
			errs = append(errs, fmt.Errorf("restoring %s: %w", original, err))
		}
	}
	h.backups = nil
	return errors.Join(errs...)
}

// Close releases the harness: rewritten configuration files are restored,
// linked fixture files are removed, and unless the harness was built with
// WithSkipCleanup, engine-local state (.terraform, terraform.tfstate,
// terragrunt caches) is deleted. Safe to call more than once. Destroy is
// never run implicitly; call it before Close when resources were applied.
func (h *Harness) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.logger.Debugf("cleaning up %s", h.dir)

	var errs []error
	if err := h.RestorePreventDestroy(); err != nil {
		errs = append(errs, err)
	}
	for _, name := range h.linked {
		if err := os.Remove(filepath.Join(h.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("removing linked file %s: %w", name, err))
		}
	}
	h.linked = nil

	if h.skipCleanup {
		return errors.Join(errs...)
	}
	if err := h.CleanDir(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CleanDir removes engine-local state from the module directory: the
// .terraform directory, local terraform.tfstate, and terragrunt caches.
// Close calls it unless the harness was built with WithSkipCleanup.
func (h *Harness) CleanDir() error {
	var errs []error
	if err := os.RemoveAll(filepath.Join(h.dir, ".terraform")); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(filepath.Join(h.dir, "terraform.tfstate")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	errs = append(errs, h.removeTerragruntCaches()...)
	return errors.Join(errs...)
}

// removeTerragruntCaches deletes every .terragrunt-cache* directory under
// the module tree, at any depth.
func (h *Harness) removeTerragruntCaches() []error {
	var errs []error
	var caches []string
	walkErr := filepath.WalkDir(h.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && strings.HasPrefix(d.Name(), ".terragrunt-cache") {
			caches = append(caches, path)
			return filepath.SkipDir
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}
	for _, path := range caches {
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
