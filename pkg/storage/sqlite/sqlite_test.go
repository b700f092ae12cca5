package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/merkle"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/sqlite"
	testutils "github.com/papercomputeco/quill/pkg/utils/test"
)

var _ = Describe("SQLiteDriver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		driver, err := sqlite.NewSQLiteDriver(sqlite.MemoryPath)
		Expect(err).NotTo(HaveOccurred())
		return driver
	})

	Describe("NewSQLiteDriver", func() {
		It("creates the database file on open", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "quill.db")

			driver, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(driver.Close)

			Expect(dbPath).To(BeAnExistingFile())
		})

		It("keeps turns across reopen", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "reopen.db")
			root := merkle.NewNode(testutils.NewTestBucket(llm.RoleUser, "persisted"), nil,
				merkle.NodeMeta{Project: "quill"})

			driver, err := sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, root)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Close()).To(Succeed())

			driver, err = sqlite.NewSQLiteDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(driver.Close)

			got, err := driver.Get(ctx, root.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Project).To(Equal("quill"))
			Expect(got.Verify()).To(BeTrue())
		})
	})
})
