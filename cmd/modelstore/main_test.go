package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/modelstore"
)

const licenseListPath = "../../testdata/licenses.json"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// =============================================================================
// Flags, config and logging
// =============================================================================

func TestValidateFormat(t *testing.T) {
	assert.NoError(t, validateFormat("json"))
	assert.NoError(t, validateFormat("text"))
	err := validateFormat("yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json or text")
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "log:\n  level: debug\ncatalog:\n  path: /tmp/licenses.db\nscripts:\n  dir: ./scripts\n")

	c, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, defaultLogFormat, c.Log.Format)
	assert.Equal(t, "/tmp/licenses.db", c.Catalog.Path)
	assert.Equal(t, "./scripts", c.Scripts.Dir)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "log: [unclosed")
	_, err := loadConfig(path)
	require.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	c := &Config{}
	applyDefaults(c)
	assert.Equal(t, defaultLogLevel, c.Log.Level)
	assert.Equal(t, defaultLogFormat, c.Log.Format)
	assert.Equal(t, defaultCatalogPath, c.Catalog.Path)
	assert.Empty(t, c.Scripts.Dir)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger("warn", "json", &buf)
	l.Info("hidden")
	l.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])

	buf.Reset()
	newLogger("bogus", "text", &buf).Info("info is the fallback level")
	assert.Contains(t, buf.String(), "level=INFO")
}

// =============================================================================
// Output
// =============================================================================

func TestCLIValue(t *testing.T) {
	assert.Equal(t, map[string]string{"ref": "urn:a", "type": "Package"},
		cliValue(modelstore.TypedRef{ID: "urn:a", Type: "Package"}))
	assert.Equal(t, map[string]string{"ref": "urn:b"}, cliValue(modelstore.Ref("urn:b")))
	assert.Equal(t, map[string]string{"individual": "urn:x"}, cliValue(modelstore.Individual{URI: "urn:x"}))
	assert.Equal(t, "plain", cliValue("plain"))
	assert.Equal(t, int64(3), cliValue(int64(3)))
}

func TestWriteResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	rc := 2
	total := 1
	err := writeResult(&buf, "json", CLIResult{
		Command:    "catalog list",
		Results:    []CLINode{{ID: "urn:a", Type: "Package", IDKind: "unknown", RefCount: &rc}},
		TotalCount: &total,
	})
	require.NoError(t, err)

	var got struct {
		Command    string    `json:"command"`
		Results    []CLINode `json:"results"`
		TotalCount int       `json:"total_count"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "catalog list", got.Command)
	require.Len(t, got.Results, 1)
	assert.Equal(t, 2, *got.Results[0].RefCount)
	assert.Equal(t, 1, got.TotalCount)
}

func TestWriteResult_TextPaginationFooter(t *testing.T) {
	var buf bytes.Buffer
	total := 5
	err := writeResult(&buf, "text", CLIResult{
		Results:    []CLINode{{ID: "urn:a", Type: "Package", IDKind: "unknown"}},
		TotalCount: &total,
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "urn:a")
	assert.Contains(t, out, "Showing 1 of 5 results")
}

func TestWriteResult_TextUnsupported(t *testing.T) {
	var buf bytes.Buffer
	err := writeResult(&buf, "text", CLIResult{Results: 42})
	require.Error(t, err)
}

func TestFormatDetailText(t *testing.T) {
	var buf bytes.Buffer
	formatDetailText(&buf, CLINodeDetail{
		Node: CLINode{ID: "urn:rel", Type: "Relationship", IDKind: "unknown"},
		Properties: []CLIProperty{
			{Property: "urn:p#to", Collection: true, Values: []any{map[string]string{"ref": "urn:a"}, map[string]string{"ref": "urn:b"}}},
			{Property: "urn:p#relationshipType", Values: []any{map[string]string{"individual": "urn:t#dependsOn"}}},
		},
		Referrers: []string{"urn:doc"},
		Digest:    "abc",
	})
	out := buf.String()
	assert.Contains(t, out, "[-> urn:a, -> urn:b]")
	assert.Contains(t, out, "<urn:t#dependsOn>")
	assert.Contains(t, out, "Referrers:\n  urn:doc")
}

// =============================================================================
// run
// =============================================================================

func TestRunScripts_Bundled(t *testing.T) {
	const ns = "urn:example:cli#"
	res, err := runScripts(context.Background(), runOptions{
		Namespace: ns,
		Top:       2,
		List:      true,
		Show:      ns + "SPDXRef-left-pad",
		Cycles:    "dependsOn",
	}, []string{"sbom.risor"})
	require.NoError(t, err)

	assert.Equal(t, ns, res.Namespace)
	assert.Len(t, res.Digest, 64)
	assert.Equal(t, 8, res.Summary.NodeCount)
	require.Len(t, res.Summary.TopReferenced, 2)
	assert.Equal(t, ns+"SPDXRef-app", res.Summary.TopReferenced[0].ID)
	assert.Equal(t, ns+"SPDXRef-left-pad", res.Summary.TopReferenced[1].ID)
	assert.Len(t, res.Nodes, 8)
	assert.Empty(t, res.Cycles)

	require.NotNil(t, res.Detail)
	assert.Equal(t, "Package", res.Detail.Node.Type)
	assert.Equal(t, "left-pad", res.Detail.Node.Name)
	assert.Len(t, res.Detail.Referrers, 2)

	again, err := runScripts(context.Background(), runOptions{Namespace: ns}, []string{"sbom.risor"})
	require.NoError(t, err)
	assert.Equal(t, res.Digest, again.Digest)
}

func TestRunScripts_DefaultNamespace(t *testing.T) {
	res, err := runScripts(context.Background(), runOptions{}, []string{"sbom.risor"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Namespace, "urn:uuid:"))
	assert.True(t, strings.HasSuffix(res.Namespace, "#"))
}

func TestRunScripts_FromDiskWithCatalog(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "catalog.db")
	_, err := importCatalog(dbPath, licenseListPath)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "helpers.risor"), `
func pkg_node(id) {
	create_node(id, "Package")
	return ref(id)
}
`)
	script := filepath.Join(dir, "build.risor")
	writeFile(t, script, `
import helpers
helpers.pkg_node(namespace + "SPDXRef-a")
import_listed("MIT")
`)

	res, err := runScripts(context.Background(), runOptions{
		Catalog:   dbPath,
		Namespace: "urn:disk#",
		Show:      "https://spdx.org/licenses/MIT",
		Logger:    slog.New(slog.DiscardHandler),
	}, []string{script})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.NodeCount)
	require.NotNil(t, res.Detail)
	assert.Equal(t, "listed", res.Detail.Node.IDKind)
	assert.Equal(t, "MIT License", res.Detail.Node.Name)
}

func TestRunScripts_Errors(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "bad.risor")
	writeFile(t, script, `delete_node("urn:missing")`)

	_, err := runScripts(context.Background(), runOptions{}, []string{script})
	require.Error(t, err)

	_, err = runScripts(context.Background(), runOptions{}, []string{"no-such-script.risor"})
	require.Error(t, err)

	_, err = runScripts(context.Background(), runOptions{Show: "urn:nothing"}, []string{"sbom.risor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// =============================================================================
// catalog
// =============================================================================

func TestCatalogCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	stats, err := importCatalog(dbPath, licenseListPath)
	require.NoError(t, err)
	assert.Equal(t, "3.24", stats.Version)
	assert.Equal(t, 4, stats.Licenses)
	assert.Equal(t, 0, stats.Replaced)

	stats, err = importCatalog(dbPath, licenseListPath)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Replaced)

	nodes, total, err := listCatalog(dbPath, "", modelstore.Sort{}, modelstore.Pagination{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, nodes, 2)
	assert.Equal(t, "https://spdx.org/licenses/0BSD", nodes[0].ID)
	assert.Nil(t, nodes[0].RefCount)

	nodes, total, err = listCatalog(dbPath, "NoSuchType", modelstore.Sort{}, modelstore.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, nodes)

	detail, err := showCatalog(dbPath, "apache-2.0")
	require.NoError(t, err)
	assert.Equal(t, "https://spdx.org/licenses/Apache-2.0", detail.Node.ID)
	assert.Equal(t, "Apache License 2.0", detail.Node.Name)
	assert.NotEmpty(t, detail.Properties)

	_, err = showCatalog(dbPath, "Nope-1.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCatalogCommands_MissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "absent.db")
	_, _, err := listCatalog(dbPath, "", modelstore.Sort{}, modelstore.Pagination{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog import")

	_, err = importCatalog(dbPath, filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
