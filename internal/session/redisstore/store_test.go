package redisstore_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/session/redisstore"
)

func TestRedisStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Session Redis Suite")
}

var _ = Describe("Redis session store", func() {
	var (
		ctx    context.Context
		mr     *miniredis.Miniredis
		client *redis.Client
		store  *redisstore.Store
		admin  session.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		mr = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		store = redisstore.NewStore(client, "console:", nil)
		admin = session.Session{
			Token: "tok-admin",
			User:  session.User{ID: "a1", Name: "Admin", Email: "admin@mail.com", Role: session.RoleAdmin},
		}
	})

	AfterEach(func() {
		_ = client.Close()
	})

	It("round-trips the pair under prefixed keys", func() {
		Expect(store.Set(ctx, admin)).To(Succeed())

		Expect(mr.Exists("console:token")).To(BeTrue())
		Expect(mr.Exists("console:user")).To(BeTrue())

		s, err := store.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(*s).To(Equal(admin))
	})

	It("reports no session when empty", func() {
		_, err := store.Get(ctx)
		Expect(err).To(MatchError(session.ErrNoSession))
	})

	It("drops a lone token", func() {
		Expect(mr.Set("console:token", "orphan")).To(Succeed())

		_, err := store.Get(ctx)
		Expect(err).To(MatchError(session.ErrNoSession))
		Expect(mr.Exists("console:token")).To(BeFalse())
	})

	It("drops a lone user", func() {
		Expect(mr.Set("console:user", `{"id":"a1","role":"admin"}`)).To(Succeed())

		_, err := store.Get(ctx)
		Expect(err).To(MatchError(session.ErrNoSession))
		Expect(mr.Exists("console:user")).To(BeFalse())
	})

	It("keeps a pair written while a lone half is being dropped", func() {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for i := 0; i < 50; i++ {
				Expect(store.Clear(ctx)).To(Succeed())
				Expect(client.Set(ctx, "console:token", "orphan", 0).Err()).To(Succeed())
				Expect(store.Set(ctx, admin)).To(Succeed())
			}
		}()
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := store.Get(ctx); err != nil {
					Expect(err).To(MatchError(session.ErrNoSession))
				}
			}
		}()
		wg.Wait()

		s, err := store.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(*s).To(Equal(admin))
	})

	It("clears both keys", func() {
		Expect(store.Set(ctx, admin)).To(Succeed())
		Expect(store.Clear(ctx)).To(Succeed())
		Expect(store.Clear(ctx)).To(Succeed())

		Expect(mr.Exists("console:token")).To(BeFalse())
		Expect(mr.Exists("console:user")).To(BeFalse())
	})

	It("surfaces backend failures", func() {
		mr.Close()
		_, err := store.Get(ctx)
		Expect(err).To(HaveOccurred())
		Expect(err).NotTo(MatchError(session.ErrNoSession))
	})
})
