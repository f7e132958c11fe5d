package cmd_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/beacon/cmd"
)

var _ = Describe("cmd / gen", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "beacon-gen")
		Expect(err).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	gen := func(kind string, out string) {
		cmd.RootCmd.SetOut(&bytes.Buffer{})
		cmd.RootCmd.SetArgs([]string{"gen", kind, "--dir", out})

		ExpectWithOffset(1, cmd.RootCmd.ExecuteContext(context.Background())).To(Succeed())
	}

	It("writes man pages, creating the directory", func() {
		out := filepath.Join(dir, "man")
		gen("man", out)

		Expect(filepath.Join(out, "beacon.1")).To(BeAnExistingFile())
		Expect(filepath.Join(out, "beacon-start.1")).To(BeAnExistingFile())
		Expect(filepath.Join(out, "beacon-get.1")).To(BeAnExistingFile())
	})

	It("writes markdown docs", func() {
		gen("markdown", dir)

		Expect(filepath.Join(dir, "beacon.md")).To(BeAnExistingFile())
		Expect(filepath.Join(dir, "beacon_set.md")).To(BeAnExistingFile())
		Expect(filepath.Join(dir, "beacon_gen_man.md")).To(BeAnExistingFile())
	})
})
