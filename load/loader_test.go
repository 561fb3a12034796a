package load_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hamba/avdl/load"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_ImportsIDL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.avdl", `
namespace org.hamba;

fixed MD5(16);
`)
	main := writeFile(t, dir, "main.avdl", `
protocol Main {
  import idl "common.avdl";

  record Foo {
    org.hamba.MD5 sum;
  }
}`)

	result, diags := load.LoadFile(main)

	require.False(t, diags.HasFatal())
	require.NotNil(t, result.Protocol)
	assert.Len(t, result.Protocol.Types(), 2)
}

func TestLoadFile_ImportCycleIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.avdl", `
protocol A {
  import idl "b.avdl";
}`)
	writeFile(t, dir, "b.avdl", `
protocol B {
  import idl "a.avdl";
}`)

	_, diags := load.LoadFile(filepath.Join(dir, "a.avdl"))

	assert.True(t, diags.HasFatal())
}

func TestLoadFile_ImportJSONSchema(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "md5.avsc", `{"type":"fixed","name":"MD5","namespace":"org.hamba","size":16}`)
	main := writeFile(t, dir, "main.avdl", `
protocol Main {
  import schema "md5.avsc";

  record Foo {
    org.hamba.MD5 sum;
  }
}`)

	result, diags := load.LoadFile(main)

	require.False(t, diags.HasFatal())
	require.Len(t, result.Protocol.Types(), 2)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, diags := load.LoadFile(filepath.Join(t.TempDir(), "missing.avdl"))

	assert.True(t, diags.HasFatal())
}

func TestLoadFile_SharedImportLoadedOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.avdl", `
namespace org.hamba;

fixed MD5(16);
`)
	main := writeFile(t, dir, "main.avdl", `
protocol Main {
  import idl "common.avdl";
  import idl "common.avdl";

  record Foo {
    org.hamba.MD5 sum;
  }
}`)

	result, diags := load.LoadFile(main)

	require.False(t, diags.HasFatal())
	assert.Len(t, result.Protocol.Types(), 2)
}
