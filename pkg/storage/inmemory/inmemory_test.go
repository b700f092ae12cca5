package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/merkle"
	"github.com/papercomputeco/quill/pkg/storage"
	"github.com/papercomputeco/quill/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/quill/pkg/utils/test"
)

var _ = Describe("Driver", func() {
	testutils.DescribeDriver(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("counts stored nodes", func() {
		d := inmemory.NewDriver()
		ctx := context.Background()

		root := merkle.NewNode(testutils.NewTestBucket(llm.RoleUser, "a"), nil)
		_, err := d.Put(ctx, root)
		Expect(err).NotTo(HaveOccurred())
		_, err = d.Put(ctx, merkle.NewNode(testutils.NewTestBucket(llm.RoleAssistant, "b"), root))
		Expect(err).NotTo(HaveOccurred())

		Expect(d.Count()).To(Equal(2))
	})

	It("stores a copy of the node", func() {
		d := inmemory.NewDriver()
		ctx := context.Background()

		node := merkle.NewNode(testutils.NewTestBucket(llm.RoleUser, "a"), nil)
		_, err := d.Put(ctx, node)
		Expect(err).NotTo(HaveOccurred())
		node.Project = "mutated"

		stored, err := d.Get(ctx, node.Hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.Project).To(BeEmpty())

		stored.Project = "mutated again"
		again, err := d.Get(ctx, node.Hash)
		Expect(err).NotTo(HaveOccurred())
		Expect(again.Project).To(BeEmpty())
	})

	It("keeps insertion order when timestamps tie", func() {
		d := inmemory.NewDriver()
		ctx := context.Background()

		var hashes []string
		for _, text := range []string{"z", "a", "m"} {
			n := merkle.NewNode(testutils.NewTestBucket(llm.RoleUser, text), nil)
			_, err := d.Put(ctx, n)
			Expect(err).NotTo(HaveOccurred())
			hashes = append(hashes, n.Hash)
		}

		roots, err := d.Roots(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(roots).To(HaveLen(3))
		for i, r := range roots {
			Expect(r.Hash).To(Equal(hashes[i]))
		}
	})
})
