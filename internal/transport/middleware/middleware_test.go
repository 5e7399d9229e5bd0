package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/guard"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/transport"
)

func TestMiddleware(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Middleware Suite")
}

var _ = Describe("filterBody", func() {
	It("masks credentials at any depth", func() {
		out := filterBody([]byte(`{"email":"a@mail.com","password":"secret","nested":{"token":"abc"},"list":[{"Authorization":"Bearer x"}]}`))
		Expect(out).To(ContainSubstring(`"email":"a@mail.com"`))
		Expect(out).NotTo(ContainSubstring("secret"))
		Expect(out).NotTo(ContainSubstring("abc"))
		Expect(out).NotTo(ContainSubstring("Bearer"))
	})

	It("drops a non-JSON body that mentions a credential", func() {
		Expect(filterBody([]byte("password=hunter2"))).To(Equal("[FILTERED - Contains sensitive data]"))
		Expect(filterBody([]byte("plain"))).To(Equal("plain"))
		Expect(filterBody(nil)).To(BeEmpty())
	})

	It("masks sensitive headers", func() {
		h := http.Header{}
		h.Set("Authorization", "Bearer x")
		h.Set("Accept", "application/json")
		out := filterHeaders(h)
		Expect(out["Authorization"]).To(Equal(filtered))
		Expect(out["Accept"]).To(Equal("application/json"))
	})
})

var _ = Describe("RequestID", func() {
	var seen string

	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = internal.TraceID(r.Context())
	}))

	It("keeps the caller's trace id", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TraceHeader, "abc")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		Expect(seen).To(Equal("abc"))
		Expect(rec.Header().Get(TraceHeader)).To(Equal("abc"))
	})

	It("mints one when there is none", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(seen).NotTo(BeEmpty())
		Expect(rec.Header().Get(TraceHeader)).To(Equal(seen))
	})
})

var _ = Describe("Guard", func() {
	var (
		store   *session.MemoryStore
		handler http.Handler
		reached bool
	)

	BeforeEach(func() {
		slogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		store = session.NewMemoryStore()
		reached = false
		handler = Guard(guard.New(store, slogger), transport.NewBaseHandler(slogger))(
			http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))
	})

	It("answers a refused navigation with 303", func() {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))

		Expect(reached).To(BeFalse())
		Expect(rec.Code).To(Equal(http.StatusSeeOther))
		Expect(rec.Header().Get("Location")).To(Equal("/login"))
	})

	It("passes an allowed navigation through", func() {
		Expect(store.Set(context.Background(), session.Session{Token: "t", User: session.User{ID: "u"}})).To(Succeed())

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
		Expect(reached).To(BeTrue())
		Expect(rec.Code).To(Equal(http.StatusOK))
	})
})
