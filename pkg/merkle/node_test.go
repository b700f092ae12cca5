package merkle_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/quill/pkg/llm"
	"github.com/papercomputeco/quill/pkg/merkle"
)

// testBucket creates a simple bucket for testing with the given text content
func testBucket(text string) merkle.Bucket {
	return merkle.MessageBucket(llm.NewTextMessage(llm.RoleUser, text), "test-model", "go")
}

var _ = Describe("Node", func() {
	Describe("NewNode", func() {
		Context("when creating a root node (no parent)", func() {
			It("creates a node with the given bucket", func() {
				bucket := testBucket("hello world")
				node := merkle.NewNode(bucket, nil)

				Expect(node.Bucket).To(Equal(bucket))
				Expect(node.Bucket.Type).To(Equal(merkle.BucketTypeMessage))
				Expect(node.ParentHash).To(BeNil())
				Expect(node.Hash).To(HaveLen(64))
			})

			It("produces consistent hashes for the same bucket", func() {
				bucket := testBucket("same content")
				Expect(merkle.NewNode(bucket, nil).Hash).To(Equal(merkle.NewNode(bucket, nil).Hash))
			})

			It("produces different hashes for different content", func() {
				Expect(merkle.NewNode(testBucket("A"), nil).Hash).
					NotTo(Equal(merkle.NewNode(testBucket("B"), nil).Hash))
			})

			It("produces different hashes for different languages", func() {
				a := merkle.MessageBucket(llm.NewTextMessage(llm.RoleUser, "x"), "m", "go")
				b := merkle.MessageBucket(llm.NewTextMessage(llm.RoleUser, "x"), "m", "rust")
				Expect(merkle.NewNode(a, nil).Hash).NotTo(Equal(merkle.NewNode(b, nil).Hash))
			})

			It("produces the same hash regardless of metadata", func() {
				bucket := testBucket("response")
				plain := merkle.NewNode(bucket, nil)
				meta := merkle.NewNode(bucket, nil, merkle.NodeMeta{Project: "quill", Partial: true})

				Expect(meta.Hash).To(Equal(plain.Hash))
				Expect(meta.Project).To(Equal("quill"))
				Expect(meta.Partial).To(BeTrue())
			})
		})

		Context("when creating a child node (with parent)", func() {
			var parent *merkle.Node

			BeforeEach(func() {
				parent = merkle.NewNode(testBucket("parent content"), nil)
			})

			It("links to the parent hash", func() {
				child := merkle.NewNode(testBucket("child content"), parent)

				Expect(child.ParentHash).NotTo(BeNil())
				Expect(*child.ParentHash).To(Equal(parent.Hash))
			})

			It("hashes differently from a root with the same content", func() {
				bucket := testBucket("same")
				Expect(merkle.NewNode(bucket, parent).Hash).NotTo(Equal(merkle.NewNode(bucket, nil).Hash))
			})

			It("chains deterministically", func() {
				build := func() string {
					n := merkle.NewNode(testBucket("1"), nil)
					n = merkle.NewNode(testBucket("2"), n)
					n = merkle.NewNode(testBucket("3"), n)
					return n.Hash
				}
				Expect(build()).To(Equal(build()))
			})
		})
	})

	Describe("Verify", func() {
		It("accepts an untouched node", func() {
			Expect(merkle.NewNode(testBucket("ok"), nil).Verify()).To(BeTrue())
		})

		It("rejects a tampered node", func() {
			node := merkle.NewNode(testBucket("ok"), nil)
			node.Bucket.Content = "tampered"
			Expect(node.Verify()).To(BeFalse())
		})
	})
})
