package image

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpecValidation(t *testing.T) {
	t.Run("DefaultSpecIsValid", func(t *testing.T) {
		spec := DefaultSpec()
		require.NoError(t, spec.Validate())
	})

	t.Run("EmptyBaseImage", func(t *testing.T) {
		spec := DefaultSpec()
		spec.BaseImage = ""

		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_image")
	})

	t.Run("UnpinnedBaseTag", func(t *testing.T) {
		spec := DefaultSpec()
		spec.BaseTag = ""

		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_tag must pin a version")
	})

	t.Run("EmptyUserName", func(t *testing.T) {
		spec := DefaultSpec()
		spec.UserName = ""

		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user_name")
	})

	t.Run("RootUserRejected", func(t *testing.T) {
		spec := DefaultSpec()
		spec.UserName = "root"

		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unprivileged")
	})

	t.Run("RelativeResultsDir", func(t *testing.T) {
		spec := DefaultSpec()
		spec.ResultsDir = "results"

		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "results_dir must be an absolute path")
	})

	t.Run("EmptyIdleCommand", func(t *testing.T) {
		spec := DefaultSpec()
		spec.IdleCommand = nil

		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idle_command")
	})

	t.Run("BlankExtraPackage", func(t *testing.T) {
		spec := DefaultSpec()
		spec.ExtraPackages = []string{"curl", "  "}

		err := spec.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "extra_packages")
	})
}

func TestSpecHelpers(t *testing.T) {
	t.Run("Reference", func(t *testing.T) {
		spec := DefaultSpec()
		assert.Equal(t, "python:3.11-slim", spec.Reference())

		spec.BaseTag = ""
		assert.Equal(t, "python", spec.Reference())
	})

	t.Run("VenvBinDir", func(t *testing.T) {
		spec := DefaultSpec()
		assert.Equal(t, "/home/sandbox/.venv/bin", spec.VenvBinDir())
	})
}

func TestLoadSpecFile(t *testing.T) {
	t.Run("OverlayMergesOverDefaults", func(t *testing.T) {
		dir := t.TempDir()
		specPath := filepath.Join(dir, "spec.yaml")
		content := "base_tag: \"3.12-slim\"\nuser_name: runner\ngroup_name: runner\nextra_packages: [curl, git]\n"
		require.NoError(t, os.WriteFile(specPath, []byte(content), 0o600))

		spec, err := LoadSpecFile(specPath)
		require.NoError(t, err)

		// Overridden fields
		assert.Equal(t, "3.12-slim", spec.BaseTag)
		assert.Equal(t, "runner", spec.UserName)
		assert.Equal(t, []string{"curl", "git"}, spec.ExtraPackages)

		// Defaults kept
		assert.Equal(t, "python", spec.BaseImage)
		assert.Equal(t, "/app/results", spec.ResultsDir)
		assert.Equal(t, []string{"sleep", "infinity"}, spec.IdleCommand)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := LoadSpecFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read spec file")
	})

	t.Run("InvalidOverlayRejected", func(t *testing.T) {
		dir := t.TempDir()
		specPath := filepath.Join(dir, "spec.yaml")
		require.NoError(t, os.WriteFile(specPath, []byte("user_name: root\n"), 0o600))

		_, err := LoadSpecFile(specPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid spec")
	})

	t.Run("MalformedYAML", func(t *testing.T) {
		dir := t.TempDir()
		specPath := filepath.Join(dir, "spec.yaml")
		require.NoError(t, os.WriteFile(specPath, []byte("extra_packages: [unclosed\n"), 0o600))

		_, err := LoadSpecFile(specPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse spec file")
	})
}
