package backend_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/cmd/quill/serve/backend"
	"github.com/papercomputeco/quill/pkg/eventstream/kafka"
	"github.com/papercomputeco/quill/pkg/eventstream/nop"
	"github.com/papercomputeco/quill/pkg/logger"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	"github.com/papercomputeco/quill/pkg/storage/sqlite"
)

var _ = Describe("OpenStorage", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("defaults to in-memory storage", func() {
		driver, err := backend.OpenStorage(ctx, backend.StorageOptions{}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
		Expect(driver.Close()).To(Succeed())
	})

	It("opens SQLite when a path is set", func() {
		path := filepath.Join(GinkgoT().TempDir(), "quill.sqlite")

		driver, err := backend.OpenStorage(ctx, backend.StorageOptions{SQLitePath: path}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&sqlite.SQLiteDriver{}))
		Expect(driver.Close()).To(Succeed())
		Expect(path).To(BeAnExistingFile())
	})

	It("fails for an unreachable PostgreSQL server", func() {
		_, err := backend.OpenStorage(ctx, backend.StorageOptions{
			PostgresDSN: "postgres://quill@127.0.0.1:1/quill?sslmode=disable&connect_timeout=1",
			SQLitePath:  "ignored.sqlite",
		}, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("PostgreSQL")))
	})
})

var _ = Describe("OpenPublisher", func() {
	It("returns a no-op publisher without brokers", func() {
		pub, err := backend.OpenPublisher(" , ", "quill.turns", logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).To(BeAssignableToTypeOf(&nop.Publisher{}))
	})

	It("returns a kafka publisher with brokers", func() {
		pub, err := backend.OpenPublisher("localhost:9092", "quill.turns", logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub).To(BeAssignableToTypeOf(&kafka.Publisher{}))
		Expect(pub.Close()).To(Succeed())
	})

	It("requires a topic with brokers", func() {
		_, err := backend.OpenPublisher("localhost:9092", "", logger.Nop())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SplitBrokers", func() {
	It("trims and drops blanks", func() {
		Expect(backend.SplitBrokers(" a:9092, ,b:9092 ")).To(Equal([]string{"a:9092", "b:9092"}))
		Expect(backend.SplitBrokers("")).To(BeEmpty())
	})
})

var _ = Describe("NewLogger", func() {
	It("also writes JSON records to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "quill.log")

		l, closeLog, err := backend.NewLogger(backend.LogOptions{File: path, JSON: true, Service: "relay"})
		Expect(err).NotTo(HaveOccurred())
		l.Info("relay started", "listen", ":8080")
		Expect(closeLog()).To(Succeed())

		raw, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(ContainSubstring(`"msg":"relay started"`))
		Expect(string(raw)).To(ContainSubstring(`"listen":":8080"`))
		Expect(string(raw)).To(ContainSubstring(`"service":"relay"`))
	})

	It("fails when the log file cannot be opened", func() {
		_, _, err := backend.NewLogger(backend.LogOptions{File: filepath.Join(GinkgoT().TempDir(), "missing", "quill.log")})
		Expect(err).To(HaveOccurred())
	})
})
