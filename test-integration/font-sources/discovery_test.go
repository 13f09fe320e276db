package integration

import (
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/font-sources/internal/probe"
	"github.com/stacklok/font-sources/test-integration/font-sources/helpers"
)

var _ = Describe("Font Source Discovery", Label("git"), func() {
	var (
		tempDir     string
		catalogPath string
		gitHelper   *helpers.GitTestHelper
		fonts       *helpers.GitTestRepository
		buildable   *helpers.GitTestRepository
		plain       *helpers.GitTestRepository
	)

	run := func(extra ...string) helpers.CLIResult {
		args := append([]string{
			"--catalog-url", fonts.CloneURL,
			"--catalog-path", catalogPath,
			"--concurrency", "2",
			"--timeout", "30s",
		}, extra...)
		return helpers.RunCLI(ctx, args...)
	}

	BeforeEach(func() {
		tempDir = createTempDir("font-sources-test-")
		catalogPath = filepath.Join(tempDir, "fonts")
		gitHelper = helpers.NewGitTestHelper()

		buildable = gitHelper.CreateRepository("buildable")
		gitHelper.CommitFiles(buildable, map[string]string{
			"source/config.yaml":   "sources:\n  - Alpha.glyphs\n",
			"source/Alpha.glyphs":  "{}",
			"source/config-it.yml": "sources:\n  - Alpha-Italic.glyphs\n",
		}, "Add sources")

		plain = gitHelper.CreateRepository("plain")

		fonts = gitHelper.CreateRepository("fonts")
		gitHelper.CommitFiles(fonts, helpers.CatalogFiles(
			helpers.Family{Name: "Alpha", Repository: buildable.CloneURL + "/"},
			helpers.Family{Name: "Alpha Italic", Repository: buildable.CloneURL},
			helpers.Family{Name: "Beta", LicenseDir: "apache", Repository: plain.CloneURL},
			helpers.Family{Name: "Gamma", LicenseDir: "ufl"},
			helpers.Family{Name: "Omega", Repository: "file://" + filepath.Join(tempDir, "gone")},
		), "Add families")
	})

	AfterEach(func() {
		if gitHelper != nil {
			_ = gitHelper.CleanupRepositories()
		}
		cleanupTempDir(tempDir)
	})

	DescribeTable("probes every repository once and reports each font",
		func(strategy string) {
			extra := []string{"--strategy", strategy}
			if strategy == string(probe.StrategyCheckout) {
				extra = append(extra, "--cache-dir", filepath.Join(tempDir, "repos"))
			}

			result := run(extra...)
			Expect(result.Err).NotTo(HaveOccurred())
			report := result.Report()
			Expect(report).To(HaveLen(5))

			for _, name := range []string{"Alpha", "Alpha Italic"} {
				entry := report[name]
				Expect(entry.Repository).To(HaveValue(Equal(buildable.CloneURL)))
				Expect(entry.Probe).To(HaveValue(Equal(string(probe.OutcomeHasConfig))))
				Expect(entry.Commit).To(Equal(gitHelper.HeadCommit(buildable)))
				Expect(entry.ConfigFiles).To(Equal([]string{"config.yaml", "config-it.yml"}))
			}

			Expect(report["Beta"].Probe).To(HaveValue(Equal(string(probe.OutcomeNoConfig))))
			Expect(report["Beta"].ConfigFiles).To(BeEmpty())

			Expect(report["Gamma"].Repository).To(BeNil())
			Expect(report["Gamma"].Probe).To(BeNil())

			Expect(report["Omega"].Probe).To(HaveValue(Equal(string(probe.OutcomeUnreachable))))
			Expect(report["Omega"].Error).NotTo(BeEmpty())
		},
		Entry("shallow clone", string(probe.StrategyShallow)),
		Entry("cached checkout", string(probe.StrategyCheckout)),
	)

	It("reuses and updates the catalog working copy between runs", func() {
		first := run("--list")
		Expect(first.Err).NotTo(HaveOccurred())
		Expect(strings.Fields(first.Stdout)).To(ConsistOf(
			buildable.CloneURL,
			plain.CloneURL,
			"file://"+filepath.Join(tempDir, "gone"),
		))
		Expect(filepath.Join(catalogPath, ".git")).To(BeADirectory())

		delta := gitHelper.CreateRepository("delta")
		gitHelper.CommitFiles(fonts, helpers.CatalogFiles(
			helpers.Family{Name: "Delta", Repository: delta.CloneURL},
		), "Add Delta")

		second := run()
		Expect(second.Err).NotTo(HaveOccurred())
		report := second.Report()
		Expect(report).To(HaveKey("Delta"))
		Expect(report["Delta"].Probe).To(HaveValue(Equal(string(probe.OutcomeNoConfig))))
	})

	It("sees upstream changes on the next run with the checkout strategy", func() {
		cacheDir := filepath.Join(tempDir, "repos")
		args := []string{"--strategy", "checkout", "--cache-dir", cacheDir, "--family", "Beta"}

		before := run(args...)
		Expect(before.Err).NotTo(HaveOccurred())
		Expect(before.Report()["Beta"].Probe).To(HaveValue(Equal(string(probe.OutcomeNoConfig))))

		gitHelper.CommitFiles(plain, map[string]string{"source/config.yaml": "sources: []\n"}, "Add config")
		after := run(args...)
		Expect(after.Err).NotTo(HaveOccurred())
		Expect(after.Report()["Beta"].Probe).To(HaveValue(Equal(string(probe.OutcomeHasConfig))))
		Expect(after.Report()["Beta"].Commit).To(Equal(gitHelper.HeadCommit(plain)))

		gitHelper.RemoveFiles(plain, "Drop config", "source/config.yaml")
		removed := run(args...)
		Expect(removed.Err).NotTo(HaveOccurred())
		Expect(removed.Report()["Beta"].Probe).To(HaveValue(Equal(string(probe.OutcomeNoConfig))))
	})

	It("produces identical reports for identical inputs", func() {
		output := filepath.Join(tempDir, "out", "sources.json")

		Expect(run("-o", output).Err).NotTo(HaveOccurred())
		first, err := os.ReadFile(output)
		Expect(err).NotTo(HaveOccurred())

		Expect(run("-o", output, "--concurrency", "1").Err).NotTo(HaveOccurred())
		second, err := os.ReadFile(output)
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
	})

	It("runs against an offline copy without fetching", func() {
		Expect(run("--list").Err).NotTo(HaveOccurred())
		gitHelper.CommitFiles(fonts, helpers.CatalogFiles(helpers.Family{Name: "Late"}), "Add Late")

		result := helpers.RunCLI(ctx, "--offline", "--catalog-path", catalogPath, "--family", "L*")
		Expect(result.Err).NotTo(HaveOccurred())
		Expect(result.Report()).To(BeEmpty())
	})

	It("fails without a report when the catalog cannot be fetched", func() {
		result := helpers.RunCLI(ctx, "--catalog-url", "file://"+filepath.Join(tempDir, "no-catalog"))
		Expect(result.Err).To(HaveOccurred())
		Expect(result.Err.Error()).To(ContainSubstring("metadata source unavailable"))
		Expect(result.Stdout).To(BeEmpty())
	})
})
