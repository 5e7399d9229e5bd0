package guard_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/internal/guard"
	"github.com/frahmantamala/ledger-console/internal/session"
)

func TestGuard(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Guard Suite")
}

type brokenStore struct{}

func (brokenStore) Get(context.Context) (*session.Session, error) {
	return nil, errors.New("disk on fire")
}
func (brokenStore) Set(context.Context, session.Session) error { return nil }
func (brokenStore) Clear(context.Context) error                { return nil }

var _ = Describe("Guard", func() {
	var (
		ctx   context.Context
		store *session.MemoryStore
		g     *guard.Guard
		clerk session.Session
		admin session.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = session.NewMemoryStore()
		g = guard.New(store, nil)
		clerk = session.Session{Token: "t1", User: session.User{ID: "u1", Role: session.RoleUser}}
		admin = session.Session{Token: "t2", User: session.User{ID: "a1", Role: session.RoleAdmin}}
	})

	DescribeTable("anonymous navigation",
		func(path string, want guard.Decision) {
			got := g.Check(ctx, path)
			Expect(got.Allowed).To(Equal(want.Allowed))
			Expect(got.Redirect).To(Equal(want.Redirect))
		},
		Entry("login is public", "/login", guard.Decision{Allowed: true}),
		Entry("ledger needs a session", "/ledger", guard.Decision{Redirect: "/login"}),
		Entry("reports need a session", "/reports", guard.Decision{Redirect: "/login"}),
		Entry("history needs a session", "/history", guard.Decision{Redirect: "/login"}),
		Entry("admin view sends anonymous users to login", "/all-users", guard.Decision{Redirect: "/login"}),
		Entry("unknown path falls back to login", "/nowhere", guard.Decision{Redirect: "/login"}),
		Entry("root falls back to login", "/", guard.Decision{Redirect: "/login"}),
	)

	Context("with a non-admin session", func() {
		BeforeEach(func() {
			Expect(store.Set(ctx, clerk)).To(Succeed())
		})

		It("opens authenticated views, including nested paths", func() {
			Expect(g.Check(ctx, "/ledger").Allowed).To(BeTrue())
			Expect(g.Check(ctx, "/ledger/abc").Allowed).To(BeTrue())
			Expect(g.Check(ctx, "/reports?x=1").Allowed).To(BeTrue())
			Expect(g.Check(ctx, "/history").Allowed).To(BeTrue())
		})

		It("sends the admin view to the default view, not to login", func() {
			d := g.Check(ctx, "/all-users")
			Expect(d.Allowed).To(BeFalse())
			Expect(d.Redirect).To(Equal(guard.DefaultView))
		})

		It("still redirects unknown paths to login", func() {
			Expect(g.Check(ctx, "/nowhere").Redirect).To(Equal("/login"))
		})

		It("hides the admin link", func() {
			nav := g.Navigation(ctx)
			Expect(nav.LoggedIn).To(BeTrue())
			Expect(nav.Admin).To(BeFalse())
			Expect(nav.Links).NotTo(ContainElement(HaveField("Path", guard.UsersView)))
			Expect(nav.Auth.Path).To(Equal("/logout"))
		})
	})

	Context("with an admin session", func() {
		BeforeEach(func() {
			Expect(store.Set(ctx, admin)).To(Succeed())
		})

		It("opens every view", func() {
			for _, path := range []string{"/ledger", "/reports", "/history", "/all-users", "/all-users/u1/permissions/can_edit/toggle"} {
				Expect(g.Check(ctx, path).Allowed).To(BeTrue(), path)
			}
		})

		It("lists the admin link", func() {
			Expect(g.Navigation(ctx).Links).To(ContainElement(HaveField("Path", guard.UsersView)))
		})
	})

	It("stops admitting once the session is cleared", func() {
		Expect(store.Set(ctx, clerk)).To(Succeed())
		Expect(g.Check(ctx, "/ledger").Allowed).To(BeTrue())

		Expect(store.Clear(ctx)).To(Succeed())
		Expect(g.Check(ctx, "/ledger").Redirect).To(Equal("/login"))

		nav := g.Navigation(ctx)
		Expect(nav.LoggedIn).To(BeFalse())
		Expect(nav.Links).To(BeEmpty())
		Expect(nav.Auth.Path).To(Equal("/login"))
	})

	It("treats an unreadable store as anonymous", func() {
		broken := guard.New(brokenStore{}, nil)
		Expect(broken.Check(ctx, "/ledger").Redirect).To(Equal("/login"))
		Expect(broken.Check(ctx, "/login").Allowed).To(BeTrue())
	})

	It("accepts extra public paths", func() {
		g.Register("/health", guard.Public)
		Expect(g.Check(ctx, "/health").Allowed).To(BeTrue())
	})

	It("picks the landing view by role", func() {
		Expect(guard.Destination(&admin)).To(Equal(guard.AdminView))
		Expect(guard.Destination(&clerk)).To(Equal(guard.DefaultView))
	})
})
