package permission_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/internal/permission"
)

func TestPermission(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Suite")
}

var _ = Describe("Set", func() {
	It("flips only the named capability", func() {
		start := permission.Set{CanView: false, CanEdit: true, CanDelete: false}

		Expect(start.Flip(permission.CanEdit)).To(Equal(permission.Set{}))
		Expect(start.Flip(permission.CanView)).To(Equal(permission.Set{CanView: true, CanEdit: true}))
		Expect(start.Flip(permission.CanDelete)).To(Equal(permission.Set{CanEdit: true, CanDelete: true}))
	})

	It("leaves the receiver untouched", func() {
		start := permission.Set{CanEdit: true}
		_ = start.Flip(permission.CanEdit)
		Expect(start.CanEdit).To(BeTrue())
	})

	It("ignores unknown capabilities", func() {
		start := permission.Set{CanView: true}
		Expect(start.Flip(permission.Capability("can_fly"))).To(Equal(start))
		Expect(start.Has(permission.Capability("can_fly"))).To(BeFalse())
	})

	DescribeTable("ParseCapability",
		func(in string, want permission.Capability, ok bool) {
			got, err := permission.ParseCapability(in)
			if !ok {
				Expect(err).To(HaveOccurred())
				return
			}
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("view", "can_view", permission.CanView, true),
		Entry("edit", "can_edit", permission.CanEdit, true),
		Entry("delete", "can_delete", permission.CanDelete, true),
		Entry("unknown", "can_fly", permission.Capability(""), false),
		Entry("camel case is not accepted", "canEdit", permission.Capability(""), false),
	)
})

var _ = Describe("DecodeEnvelope", func() {
	It("reads the plural shape and defaults missing capabilities to false", func() {
		set, err := permission.DecodeEnvelope([]byte(`{"permissions":{"can_edit":true}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(Equal(permission.Set{CanEdit: true}))
	})

	It("reads the singular shape", func() {
		set, err := permission.DecodeEnvelope([]byte(`{"permission":{"can_view":true,"can_delete":true}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(Equal(permission.Set{CanView: true, CanDelete: true}))
	})

	It("prefers the plural shape", func() {
		set, err := permission.DecodeEnvelope([]byte(`{"permission":{"can_view":true},"permissions":{"can_edit":true}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(Equal(permission.Set{CanEdit: true}))
	})

	It("yields an empty set when neither is present", func() {
		set, err := permission.DecodeEnvelope([]byte(`{}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(set).To(Equal(permission.Set{}))
	})

	It("rejects malformed JSON", func() {
		_, err := permission.DecodeEnvelope([]byte(`{`))
		Expect(err).To(HaveOccurred())
	})
})
