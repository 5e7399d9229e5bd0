package user_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/gateway/gatewaytest"
	"github.com/frahmantamala/ledger-console/internal/notice"
	"github.com/frahmantamala/ledger-console/internal/permission"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/transport"
	"github.com/frahmantamala/ledger-console/internal/user"
)

func TestUser(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "User Suite")
}

var _ = Describe("User management", func() {
	const assignPath = "/auth/assign-permissions"

	var (
		ctx     context.Context
		backend *gatewaytest.Backend
		store   *session.MemoryStore
		service *user.Service
		slogger *slog.Logger
		view    *user.View
	)

	BeforeEach(func() {
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		backend = gatewaytest.NewBackend()
		store = session.NewMemoryStore()
		Expect(store.Set(ctx, session.Session{
			Token: backend.Token(gatewaytest.AdminID),
			User:  session.User{ID: gatewaytest.AdminID, Role: session.RoleAdmin},
		})).To(Succeed())

		service = user.NewService(gateway.NewClient(backend.Config(), slogger), store, nil, notice.New(50*time.Millisecond), slogger)

		var err error
		view, err = service.OpenUsers(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		backend.Close()
	})

	Describe("Load", func() {
		It("lists managed users without admins", func() {
			Expect(view.Load(ctx)).To(Succeed())

			users := view.Snapshot().Users
			Expect(users).To(HaveLen(1))
			Expect(users[0].RecordID()).To(Equal(gatewaytest.ClerkID))
			Expect(users[0].Permissions).To(Equal(permission.Set{CanView: true, CanEdit: true}))
		})

		It("is refused to a non-admin", func() {
			Expect(store.Set(ctx, session.Session{
				Token: backend.Token(gatewaytest.ClerkID),
				User:  session.User{ID: gatewaytest.ClerkID, Role: session.RoleUser},
			})).To(Succeed())

			Expect(view.Load(ctx)).To(MatchError(internal.ErrPermissionDenied))
			Expect(backend.Count(http.MethodGet, "/users/users")).To(BeZero())
		})
	})

	Describe("CreateUser", func() {
		BeforeEach(func() {
			Expect(view.Load(ctx)).To(Succeed())
		})

		It("appends the created account and shows a notice", func() {
			created, err := view.CreateUser(ctx, user.NewUser{Name: "Sari", Email: "sari@mail.com", Password: "sari123", Role: session.RoleUser})
			Expect(err).NotTo(HaveOccurred())
			Expect(created.Name).To(Equal("Sari"))
			Expect(view.Snapshot().Users).To(HaveLen(2))
			Expect(view.Snapshot().Notice).To(Equal("User created successfully!"))
			Eventually(func() string { return view.Snapshot().Notice }).Should(BeEmpty())
		})

		It("keeps a created admin out of the list", func() {
			created, err := view.CreateUser(ctx, user.NewUser{Name: "Root", Email: "root@mail.com", Password: "root123", Role: session.RoleAdmin})
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeNil())
			Expect(view.Snapshot().Users).To(HaveLen(1))
		})

		DescribeTable("validates the form before the network",
			func(form user.NewUser) {
				_, err := view.CreateUser(ctx, form)
				Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
				Expect(backend.Count(http.MethodPost, "/users/create-user")).To(BeZero())
			},
			Entry("missing name", user.NewUser{Email: "a@mail.com", Password: "secret1", Role: session.RoleUser}),
			Entry("bad email", user.NewUser{Name: "A", Email: "nope", Password: "secret1", Role: session.RoleUser}),
			Entry("short password", user.NewUser{Name: "A", Email: "a@mail.com", Password: "x", Role: session.RoleUser}),
			Entry("unknown role", user.NewUser{Name: "A", Email: "a@mail.com", Password: "secret1", Role: "root"}),
		)
	})

	Describe("Toggle", func() {
		BeforeEach(func() {
			Expect(view.Load(ctx)).To(Succeed())
		})

		It("submits the flipped set and patches only that capability", func() {
			updated, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanDelete)
			Expect(err).NotTo(HaveOccurred())
			Expect(updated.Permissions).To(Equal(permission.Set{CanView: true, CanEdit: true, CanDelete: true}))
			Expect(backend.Permissions(gatewaytest.ClerkID).CanDelete).To(BeTrue())

			got, _ := view.Get(gatewaytest.ClerkID)
			Expect(got.Permissions.CanDelete).To(BeTrue())
			Expect(view.Snapshot().Notice).To(Equal("Permission updated successfully for " + gatewaytest.ClerkName))
		})

		It("flips back on a second toggle", func() {
			_, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanView)
			Expect(err).NotTo(HaveOccurred())
			_, err = view.Toggle(ctx, gatewaytest.ClerkID, permission.CanView)
			Expect(err).NotTo(HaveOccurred())

			got, _ := view.Get(gatewaytest.ClerkID)
			Expect(got.Permissions.CanView).To(BeTrue())
			Expect(backend.Count(http.MethodPost, assignPath)).To(Equal(2))
		})

		Context("starting from view off, edit on, delete off", func() {
			start := permission.Set{CanEdit: true}

			BeforeEach(func() {
				backend.SetPermissions(gatewaytest.ClerkID, start)
				Expect(view.Load(ctx)).To(Succeed())
			})

			It("revokes edit locally and remotely", func() {
				updated, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanEdit)
				Expect(err).NotTo(HaveOccurred())
				Expect(updated.Permissions).To(Equal(permission.Set{}))
				Expect(backend.Permissions(gatewaytest.ClerkID)).To(Equal(permission.Set{}))

				got, _ := view.Get(gatewaytest.ClerkID)
				Expect(got.Permissions).To(Equal(permission.Set{}))
			})

			It("keeps edit on both sides when the session has expired", func() {
				backend.Expire()

				_, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanEdit)
				Expect(internal.IsUnauthorized(err)).To(BeTrue())
				Expect(backend.Permissions(gatewaytest.ClerkID)).To(Equal(start))

				got, _ := view.Get(gatewaytest.ClerkID)
				Expect(got.Permissions).To(Equal(start))
				_, err = store.Get(ctx)
				Expect(err).To(MatchError(session.ErrNoSession))
			})
		})

		It("carries the other grants over when the service uses the singular field", func() {
			granted := permission.Set{CanView: true, CanDelete: true}
			backend.UsePermissionField("permission")
			backend.SetPermissions(gatewaytest.ClerkID, granted)

			cfg := backend.Config()
			cfg.PermissionField = "permission"
			svc := user.NewService(gateway.NewClient(cfg, slogger), store, nil, notice.New(50*time.Millisecond), slogger)
			singular, err := svc.OpenUsers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(singular.Load(ctx)).To(Succeed())

			got, _ := singular.Get(gatewaytest.ClerkID)
			Expect(got.Permissions).To(Equal(granted))

			updated, err := singular.Toggle(ctx, gatewaytest.ClerkID, permission.CanEdit)
			Expect(err).NotTo(HaveOccurred())
			all := permission.Set{CanView: true, CanEdit: true, CanDelete: true}
			Expect(updated.Permissions).To(Equal(all))
			Expect(backend.Permissions(gatewaytest.ClerkID)).To(Equal(all))
			Expect(backend.LastPermissionField()).To(Equal("permission"))
		})

		It("fails on an unknown user without a network call", func() {
			_, err := view.Toggle(ctx, "ghost", permission.CanView)
			appErr, ok := internal.AsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeNotFound))
			Expect(appErr.Code).To(Equal(internal.ErrCodeInvariantViolation))
			Expect(backend.Count(http.MethodPost, assignPath)).To(BeZero())
		})

		It("leaves the local set alone when the service refuses", func() {
			backend.Fail(http.MethodPost, assignPath, http.StatusInternalServerError, "boom")

			_, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanEdit)
			Expect(err).To(MatchError(ContainSubstring("Failed to update permissions")))

			got, _ := view.Get(gatewaytest.ClerkID)
			Expect(got.Permissions.CanEdit).To(BeTrue())
			Expect(view.Snapshot().Notice).To(BeEmpty())
		})

		It("ends the session on an authorization failure", func() {
			backend.Expire()

			_, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanEdit)
			Expect(internal.IsUnauthorized(err)).To(BeTrue())
			_, err = store.Get(ctx)
			Expect(err).To(MatchError(session.ErrNoSession))

			got, _ := view.Get(gatewaytest.ClerkID)
			Expect(got.Permissions.CanEdit).To(BeTrue())
			Expect(backend.Permissions(gatewaytest.ClerkID).CanEdit).To(BeTrue())
		})

		It("allows one toggle per user at a time", func() {
			arrived, release := backend.Pause(http.MethodPost, assignPath)
			defer release()

			done := make(chan error, 1)
			go func() {
				_, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanView)
				done <- err
			}()
			Eventually(arrived).Should(BeClosed())

			Expect(view.Snapshot().Toggling).To(ConsistOf(gatewaytest.ClerkID))
			_, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanEdit)
			Expect(err).To(MatchError(internal.ErrOperationBusy))

			release()
			Eventually(done).Should(Receive(BeNil()))
		})

		It("discards a response that a reload overtook", func() {
			arrived, release := backend.Pause(http.MethodPost, assignPath)
			defer release()

			done := make(chan error, 1)
			go func() {
				_, err := view.Toggle(ctx, gatewaytest.ClerkID, permission.CanDelete)
				done <- err
			}()
			Eventually(arrived).Should(BeClosed())

			Expect(view.Load(ctx)).To(Succeed())
			release()

			var err error
			Eventually(done).Should(Receive(&err))
			Expect(err).To(MatchError(internal.ErrSuperseded))

			got, _ := view.Get(gatewaytest.ClerkID)
			Expect(got.Permissions.CanDelete).To(BeFalse())
		})
	})

	Describe("Handler", func() {
		var router chi.Router

		do := func(method, path, body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
			return rec
		}

		BeforeEach(func() {
			h := user.NewHandler(transport.NewBaseHandler(slogger), service)
			router = chi.NewRouter()
			router.Get("/all-users", h.ShowUsers)
			router.Post("/all-users", h.CreateUser)
			router.Post("/all-users/{id}/permissions/{capability}/toggle", h.TogglePermission)
		})

		It("toggles through the route", func() {
			Expect(do(http.MethodGet, "/all-users", "").Code).To(Equal(http.StatusOK))

			rec := do(http.MethodPost, "/all-users/"+gatewaytest.ClerkID+"/permissions/can_delete/toggle", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var snap user.Snapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.Users[0].Permissions.CanDelete).To(BeTrue())
			Expect(snap.Notice).To(ContainSubstring(gatewaytest.ClerkName))
		})

		It("rejects an unknown capability", func() {
			rec := do(http.MethodPost, "/all-users/"+gatewaytest.ClerkID+"/permissions/can_fly/toggle", "")
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("defaults the role of a new account", func() {
			Expect(do(http.MethodGet, "/all-users", "").Code).To(Equal(http.StatusOK))

			rec := do(http.MethodPost, "/all-users", `{"name":"Sari","email":"sari@mail.com","password":"sari123"}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))
			Expect(rec.Body.String()).To(ContainSubstring(`"role":"user"`))
		})
	})
})
