package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackageLayout(t *testing.T) {
	root := filepath.Join("tmp", "cache")

	pkg := PackagePath(root, "@scope/name", "1.2.3")
	assert.Equal(t, filepath.Join(root, "@scope", "name", "1.2.3"), pkg.Dir())
	assert.Equal(t, filepath.Join(root, "@scope", "name", "1.2.3", "package"), pkg.UnpackedDir())
	assert.Equal(t, filepath.Join(root, "@scope", "name", "1.2.3", "package", "package.json"), pkg.ManifestPath())
}

func TestValidatePackageName(t *testing.T) {
	valid := []string{"lodash", "left-pad", "@scope/name", "@babel/core"}
	for _, name := range valid {
		assert.NoError(t, ValidatePackageName(name), name)
	}

	invalid := []string{"", "/etc/passwd", "a/b", "..", "@scope", "@scope/", "@/name", "@scope/../x", ".hidden", "a\\b"}
	for _, name := range invalid {
		assert.Error(t, ValidatePackageName(name), name)
	}
}

func TestValidateVersion(t *testing.T) {
	assert.NoError(t, ValidateVersion("1.2.3"))
	assert.NoError(t, ValidateVersion("2.0.0-beta.1"))
	assert.Error(t, ValidateVersion(""))
	assert.Error(t, ValidateVersion(".."))
	assert.Error(t, ValidateVersion("1/2"))
}

func TestWithin(t *testing.T) {
	root := filepath.Join("a", "b")
	assert.True(t, Within(root, root))
	assert.True(t, Within(root, filepath.Join(root, "c")))
	assert.False(t, Within(root, filepath.Join("a", "bc")))
	assert.False(t, Within(root, filepath.Join(root, "..", "x")))
}

func TestCacheRootOr(t *testing.T) {
	assert.Equal(t, "custom", CacheRootOr("custom"))
	assert.Contains(t, CacheRootOr(""), filepath.Join(AppName, "npm"))
}
