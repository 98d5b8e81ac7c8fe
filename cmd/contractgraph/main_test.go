package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/contractgraph/internal/auth"
)

func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err = run(context.Background(), args, &out, &errOut)
	return out.String(), errOut.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestHelp(t *testing.T) {
	out, _, err := runCmd(t, "help", "serve")
	require.NoError(t, err)
	require.Contains(t, out, "serve FLAGS")

	out, _, err = runCmd(t, "help")
	require.NoError(t, err)
	require.Contains(t, out, "COMMANDS")

	_, _, err = runCmd(t, "help", "nope")
	require.Error(t, err)
}

func TestUnknownCommand(t *testing.T) {
	_, stderr, err := runCmd(t, "frobnicate")
	require.ErrorContains(t, err, "unknown command")
	require.Contains(t, stderr, "USAGE")

	_, _, err = runCmd(t)
	require.ErrorContains(t, err, "missing command")
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "contracts", "Product.yaml"), `controllerName: Product
fields:
  - propertyKey: name
    protoType: string
auth: true
`)
	cfgPath := filepath.Join(dir, "contractgraph.yaml")
	writeFile(t, cfgPath, strings.Join([]string{
		"app:",
		"  sourceDir: " + filepath.Join(dir, "src"),
		"  contractsDir: " + filepath.Join(dir, "contracts"),
		"  generatedRoot: " + filepath.Join(dir, "generated"),
		"",
	}, "\n"))

	out, _, err := runCmd(t, "generate", "-config", cfgPath, "-env", filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	artifact := filepath.Join(dir, "generated", "resolvers", "product.resolver.graphql")
	require.Contains(t, out, artifact)
	require.FileExists(t, artifact)
}

func TestCompileSDL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "item.graphql"), `type Item {
  id: ID!
}

extend type Query {
  hello: String
}
`)
	out, _, err := runCmd(t, "compile-sdl", "-root", dir)
	require.NoError(t, err)
	require.Contains(t, out, "type Item")
	require.Contains(t, out, "hello: String")

	outFile := filepath.Join(t.TempDir(), "schema.graphql")
	_, _, err = runCmd(t, "compile-sdl", "-root", dir, "-out", outFile)
	require.NoError(t, err)
	require.FileExists(t, outFile)
}

func TestRepair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.resolver.graphql")
	writeFile(t, path, "type Item {\n  id: ID!\n")

	_, _, err := runCmd(t, "repair", "-check", path)
	require.ErrorContains(t, err, "need repair")

	out, _, err := runCmd(t, "repair", path)
	require.NoError(t, err)
	require.Contains(t, out, "repaired")

	_, _, err = runCmd(t, "repair", "-check", path)
	require.NoError(t, err)

	_, _, err = runCmd(t, "repair")
	require.ErrorContains(t, err, "no files")
}

func TestToken(t *testing.T) {
	out, _, err := runCmd(t, "token", "-secret", "cli-secret", "-subject", "ops", "-role", "product:read", "-role", "product:create")
	require.NoError(t, err)

	claims, err := auth.NewHMACVerifier("cli-secret").Verify(strings.TrimSpace(out))
	require.NoError(t, err)
	require.Equal(t, "ops", claims.Subject)
	require.False(t, claims.Root)
	require.Equal(t, auth.RoleList{"product:read", "product:create"}, claims.Roles)
}
