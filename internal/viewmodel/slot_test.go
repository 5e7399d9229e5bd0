package viewmodel_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/internal/core/events"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

type countingView struct {
	loads   int
	closed  bool
	loadErr error
}

func (v *countingView) Load(context.Context) error {
	v.loads++
	return v.loadErr
}

func (v *countingView) Close() { v.closed = true }

var _ = Describe("Slot", func() {
	var (
		ctx    context.Context
		opened []*countingView
		slot   *viewmodel.Slot[*countingView]
	)

	BeforeEach(func() {
		ctx = context.Background()
		opened = nil
		slot = viewmodel.NewSlot("counting", func(context.Context) (*countingView, error) {
			v := &countingView{}
			opened = append(opened, v)
			return v, nil
		}, nil)
	})

	It("opens and loads a fresh view on every navigation", func() {
		first, err := slot.Navigate(ctx)
		Expect(err).NotTo(HaveOccurred())
		second, err := slot.Navigate(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(first.closed).To(BeTrue())
		Expect(second.closed).To(BeFalse())
		Expect(second.loads).To(Equal(1))

		current, ok := slot.Current()
		Expect(ok).To(BeTrue())
		Expect(current).To(BeIdenticalTo(second))
	})

	It("reuses the live view on Ensure", func() {
		first, err := slot.Ensure(ctx)
		Expect(err).NotTo(HaveOccurred())
		again, err := slot.Ensure(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeIdenticalTo(first))
		Expect(opened).To(HaveLen(1))
	})

	It("keeps the view when its load fails", func() {
		slot = viewmodel.NewSlot("failing", func(context.Context) (*countingView, error) {
			return &countingView{loadErr: errors.New("down")}, nil
		}, nil)

		view, err := slot.Navigate(ctx)
		Expect(err).To(MatchError("down"))
		Expect(view).NotTo(BeNil())
		_, ok := slot.Current()
		Expect(ok).To(BeTrue())
	})

	It("tears the view down when the session is cleared", func() {
		bus := events.NewEventBus(nil)
		slot.CloseOn(bus, events.EventTypeSessionCleared)

		store := session.NewNotifier(session.NewMemoryStore(), bus, nil)
		Expect(store.Set(ctx, session.Session{Token: "t", User: session.User{ID: "u"}})).To(Succeed())

		view, err := slot.Navigate(ctx)
		Expect(err).NotTo(HaveOccurred())

		Expect(store.Clear(ctx)).To(Succeed())
		Expect(view.closed).To(BeTrue())
		_, ok := slot.Current()
		Expect(ok).To(BeFalse())
	})
})
