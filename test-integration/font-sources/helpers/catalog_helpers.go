package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/onsi/gomega"

	"github.com/stacklok/font-sources/cmd/font-sources/app"
)

// Family describes one catalog entry
type Family struct {
	Name       string
	LicenseDir string
	Repository string
}

// Path is the location of the family's METADATA.pb in the catalog
func (f Family) Path() string {
	dir := f.LicenseDir
	if dir == "" {
		dir = "ofl"
	}
	return fmt.Sprintf("%s/%s/METADATA.pb", dir, strings.ToLower(strings.ReplaceAll(f.Name, " ", "")))
}

// Record renders the family as a METADATA.pb record
func (f Family) Record() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %q\ndesigner: \"Test Foundry\"\nlicense: \"OFL\"\ncategory: \"SANS_SERIF\"\n", f.Name)
	fmt.Fprintf(&b, "fonts {\n  name: %q\n  style: \"normal\"\n  weight: 400\n}\n", f.Name)
	if f.Repository != "" {
		fmt.Fprintf(&b, "source {\n  repository_url: %q\n  branch: \"main\"\n}\n", f.Repository)
	}
	return b.String()
}

// CatalogFiles returns the METADATA.pb files describing families
func CatalogFiles(families ...Family) map[string]string {
	files := make(map[string]string, len(families))
	for _, f := range families {
		files[f.Path()] = f.Record()
	}
	return files
}

// ReportEntry mirrors one value of the JSON report
type ReportEntry struct {
	Repository   *string  `json:"repository"`
	Probe        *string  `json:"probe"`
	Commit       string   `json:"commit"`
	ConfigFiles  []string `json:"config_files"`
	Error        string   `json:"error"`
	PinnedCommit string   `json:"pinned_commit"`
	RevConflict  bool     `json:"rev_conflict"`
}

// CLIResult holds the output of one font-sources invocation
type CLIResult struct {
	Stdout string
	Stderr string
	Err    error
}

// Report decodes Stdout as a report
func (r CLIResult) Report() map[string]ReportEntry {
	var report map[string]ReportEntry
	gomega.Expect(json.Unmarshal([]byte(r.Stdout), &report)).To(gomega.Succeed(), r.Stdout)
	return report
}

// RunCLI executes the font-sources root command with args
func RunCLI(ctx context.Context, args ...string) CLIResult {
	var stdout, stderr bytes.Buffer
	cmd := app.NewRootCmd(nil)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(ctx)
	return CLIResult{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}
