package dispatch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/samber/mo"
)

// WorkArea is one job's private staging directory under the configured
// root, named by the job's execution identity. Every staged artifact,
// including the legacy alias, lives inside that directory, so two jobs
// with distinct identities can never share a path and no locking is
// needed across concurrent jobs.
type WorkArea struct {
	dir         string
	executionID string
	alias       mo.Option[string]
}

// NewWorkArea derives a working area under root for the given execution
// identity. alias, when present, is a conventional file name materialized
// next to the dataset for payloads that hard-code their input name.
func NewWorkArea(root, executionID string, alias mo.Option[string]) WorkArea {
	return WorkArea{
		dir:         filepath.Join(root, executionID),
		executionID: executionID,
		alias:       alias,
	}
}

// Dir is the job's private staging directory.
func (w WorkArea) Dir() string {
	return w.dir
}

// DatasetPath is where the dataset chunk is staged.
func (w WorkArea) DatasetPath() string {
	return filepath.Join(w.dir, fmt.Sprintf("dataset_%s.csv", w.executionID))
}

// PayloadPath is where the model payload is staged.
func (w WorkArea) PayloadPath() string {
	return filepath.Join(w.dir, fmt.Sprintf("model_%s.py", w.executionID))
}

// OutputPath is where the payload writes its serialized weights.
func (w WorkArea) OutputPath() string {
	return filepath.Join(w.dir, fmt.Sprintf("weights_%s.bin", w.executionID))
}

// AliasPath returns the legacy alias path when one is configured.
func (w WorkArea) AliasPath() (string, bool) {
	name, ok := w.alias.Get()
	if !ok {
		return "", false
	}
	return filepath.Join(w.dir, name), true
}

// Prepare gives the job an empty private directory. Leftovers from a prior
// failed run with the same identity are removed first so staging is
// idempotent.
func (w WorkArea) Prepare() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("reset working area %s: %w", w.dir, err)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create working area %s: %w", w.dir, err)
	}
	return nil
}

// MaterializeAlias links the staged dataset to the legacy alias path,
// falling back to a full copy on platforms without link support. It is a
// no-op when no alias is configured.
func (w WorkArea) MaterializeAlias() error {
	aliasPath, ok := w.AliasPath()
	if !ok {
		return nil
	}

	if err := os.Remove(aliasPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing alias %s: %w", aliasPath, err)
	}

	linkErr := os.Symlink(w.DatasetPath(), aliasPath)
	if linkErr == nil {
		log.Debug().Str("alias", aliasPath).Msg("Created dataset alias link")
		return nil
	}
	log.Warn().Err(linkErr).Str("alias", aliasPath).Msg("Link unsupported, copying dataset to alias path")

	if err := copyFile(w.DatasetPath(), aliasPath); err != nil {
		return fmt.Errorf("copy dataset to alias %s: %w", aliasPath, err)
	}
	return nil
}

// Clean removes the whole staging directory. It runs on every exit path;
// failures are logged and never escalated because the job's outcome is
// already determined by the time cleanup runs.
func (w WorkArea) Clean() {
	if err := os.RemoveAll(w.dir); err != nil {
		log.Warn().Err(err).Str("dir", w.dir).Msg("Failed to clean working area")
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
