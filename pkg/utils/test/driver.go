package testutils

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/merkle"
	"github.com/papercomputeco/quill/pkg/storage"
)

// DescribeDriver registers the storage.Driver behaviour every backend must
// share. newDriver is called before each test and must return an empty store.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a node", func() {
			node := merkle.NewNode(NewTestBucket(llm.RoleUser, "test content"), nil,
				merkle.NodeMeta{Project: "quill"})

			isNew, err := driver.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			retrieved, err := driver.Get(ctx, node.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Hash).To(Equal(node.Hash))
			Expect(retrieved.Bucket).To(Equal(node.Bucket))
			Expect(retrieved.ParentHash).To(BeNil())
			Expect(retrieved.Project).To(Equal("quill"))
			Expect(retrieved.Partial).To(BeFalse())
			Expect(retrieved.CreatedAt).NotTo(BeZero())
			Expect(retrieved.Verify()).To(BeTrue())
		})

		It("stores the partial flag", func() {
			node := merkle.NewNode(NewTestBucket(llm.RoleAssistant, "cut off"), nil,
				merkle.NodeMeta{Partial: true})
			_, err := driver.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())

			retrieved, err := driver.Get(ctx, node.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.Partial).To(BeTrue())
		})

		It("stores and retrieves a node with parent", func() {
			parent := merkle.NewNode(NewTestBucket(llm.RoleUser, "parent"), nil)
			child := merkle.NewNode(NewTestBucket(llm.RoleAssistant, "child"), parent)

			_, err := driver.Put(ctx, parent)
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, child)
			Expect(err).NotTo(HaveOccurred())

			retrieved, err := driver.Get(ctx, child.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.ParentHash).NotTo(BeNil())
			Expect(*retrieved.ParentHash).To(Equal(parent.Hash))
		})

		It("deduplicates identical nodes", func() {
			node := merkle.NewNode(NewTestBucket(llm.RoleUser, "same"), nil)

			first, err := driver.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())
			second, err := driver.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())

			Expect(first).To(BeTrue())
			Expect(second).To(BeFalse())

			nodes, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(1))
		})

		It("rejects a nil node", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(HaveOccurred())
		})

		It("returns NotFoundError for a missing node", func() {
			_, err := driver.Get(ctx, "nonexistent")

			var nf storage.NotFoundError
			Expect(errors.As(err, &nf)).To(BeTrue())
			Expect(nf.Hash).To(Equal("nonexistent"))
		})
	})

	Describe("Has", func() {
		It("reports existence", func() {
			node := merkle.NewNode(NewTestBucket(llm.RoleUser, "x"), nil)

			exists, err := driver.Has(ctx, node.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())

			_, err = driver.Put(ctx, node)
			Expect(err).NotTo(HaveOccurred())

			exists, err = driver.Has(ctx, node.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})
	})

	Context("with a branching conversation", func() {
		var root, reply, branchA, branchB *merkle.Node

		BeforeEach(func() {
			root = merkle.NewNode(NewTestBucket(llm.RoleUser, "hello"), nil)
			reply = merkle.NewNode(NewTestBucket(llm.RoleAssistant, "hi"), root)
			branchA = merkle.NewNode(NewTestBucket(llm.RoleUser, "option A"), reply)
			branchB = merkle.NewNode(NewTestBucket(llm.RoleUser, "option B"), reply)

			for _, n := range []*merkle.Node{root, reply, branchA, branchB} {
				_, err := driver.Put(ctx, n)
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("lists every node", func() {
			nodes, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(nodes).To(HaveLen(4))
		})

		It("finds the single root", func() {
			roots, err := driver.Roots(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(roots).To(HaveLen(1))
			Expect(roots[0].Hash).To(Equal(root.Hash))
		})

		It("finds both leaves", func() {
			leaves, err := driver.Leaves(ctx)
			Expect(err).NotTo(HaveOccurred())

			hashes := make([]string, 0, len(leaves))
			for _, l := range leaves {
				hashes = append(hashes, l.Hash)
			}
			Expect(hashes).To(ConsistOf(branchA.Hash, branchB.Hash))
		})

		It("returns ancestry from node to root", func() {
			path, err := driver.Ancestry(ctx, branchB.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HaveLen(3))
			Expect(path[0].Hash).To(Equal(branchB.Hash))
			Expect(path[1].Hash).To(Equal(reply.Hash))
			Expect(path[2].Hash).To(Equal(root.Hash))
		})

		It("computes depth", func() {
			depth, err := driver.Depth(ctx, root.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(Equal(0))

			depth, err = driver.Depth(ctx, branchA.Hash)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(Equal(2))
		})

		It("fails ancestry for a missing node", func() {
			_, err := driver.Ancestry(ctx, "missing")
			Expect(err).To(HaveOccurred())
		})
	})
}
