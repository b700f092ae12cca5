package sqlstore

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Dialect", func() {
	It("leaves placeholders alone for sqlite", func() {
		Expect(SQLite.rebind("SELECT ? WHERE a = ?")).To(Equal("SELECT ? WHERE a = ?"))
	})

	It("numbers placeholders for postgres", func() {
		Expect(Postgres.rebind("INSERT INTO t VALUES (?, ?, ?)")).To(Equal("INSERT INTO t VALUES ($1, $2, $3)"))
	})
})
