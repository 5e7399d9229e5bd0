package notice_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/internal/notice"
)

func TestNotice(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notice Suite")
}

var _ = Describe("Notice", func() {
	It("defaults to three seconds", func() {
		Expect(notice.DefaultDuration).To(Equal(3 * time.Second))
	})

	It("clears itself after the delay", func() {
		n := notice.New(50 * time.Millisecond)
		n.Show("Permission updated successfully for Budi")

		Expect(n.Current()).To(Equal("Permission updated successfully for Budi"))
		Eventually(n.Current).WithTimeout(time.Second).Should(BeEmpty())
	})

	It("lets a newer message outlive the older timer", func() {
		n := notice.New(150 * time.Millisecond)
		n.Show("first")
		time.Sleep(100 * time.Millisecond)
		n.Show("second")

		Consistently(n.Current).WithTimeout(80 * time.Millisecond).Should(Equal("second"))
		Eventually(n.Current).WithTimeout(time.Second).Should(BeEmpty())
	})

	It("clears on demand", func() {
		n := notice.New(time.Hour)
		n.Show("hello")
		n.Clear()
		Expect(n.Current()).To(BeEmpty())
	})
})
