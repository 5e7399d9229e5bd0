package report_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/internal"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/gateway/gatewaytest"
	"github.com/frahmantamala/ledger-console/internal/report"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/transport"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

func TestReport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Report Suite")
}

var _ = Describe("Reports", func() {
	var (
		ctx     context.Context
		backend *gatewaytest.Backend
		store   *session.MemoryStore
		service *report.Service
		slogger *slog.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		backend = gatewaytest.NewBackend()
		store = session.NewMemoryStore()
		Expect(store.Set(ctx, session.Session{
			Token: backend.Token(gatewaytest.ClerkID),
			User:  session.User{ID: gatewaytest.ClerkID, Role: session.RoleUser},
		})).To(Succeed())

		var err error
		service, err = report.NewService(gateway.NewClient(backend.Config(), slogger), store, nil, slogger)
		Expect(err).NotTo(HaveOccurred())

		backend.SeedReport(gatewaytest.Record{"province": "Jawa Barat", "reportType": "FAN", "comments": "2 left"})
	})

	AfterEach(func() {
		backend.Close()
	})

	It("lists reports from the report envelope", func() {
		view, err := service.OpenReports(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(view.Load(ctx)).To(Succeed())

		records := view.Records()
		Expect(records).To(HaveLen(1))
		Expect(records[0].ReportType).To(Equal("FAN"))
		Expect(records[0].RecordID()).NotTo(BeEmpty())
	})

	DescribeTable("rejecting drafts before the network",
		func(draft report.Report) {
			view, _ := service.OpenReports(ctx)
			Expect(view.Load(ctx)).To(Succeed())

			_, err := view.Create(ctx, draft)
			Expect(internal.HasType(err, internal.ErrorTypeValidation)).To(BeTrue())
			Expect(backend.Count(http.MethodPost, "/reports")).To(BeZero())
		},
		Entry("missing province", report.Report{ReportType: "FAN"}),
		Entry("missing type", report.Report{Province: "Bali"}),
		Entry("unknown type", report.Report{Province: "Bali", ReportType: "SCREEN"}),
	)

	It("creates, updates and deletes a report", func() {
		view, _ := service.OpenReports(ctx)
		Expect(view.Load(ctx)).To(Succeed())

		created, err := view.Create(ctx, report.Report{Province: "Bali", ReportType: "POWER PIN"})
		Expect(err).NotTo(HaveOccurred())
		Expect(view.Records()).To(HaveLen(2))

		id := created.RecordID()
		updated, err := view.Update(ctx, id, report.Report{Province: "Bali", ReportType: "POWER PIN", Comments: "restocked"})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Comments).To(Equal("restocked"))

		deleted, err := view.Delete(ctx, id, func(report.Report) bool { return true })
		Expect(err).NotTo(HaveOccurred())
		Expect(deleted).To(BeTrue())
		Expect(backend.Reports()).To(HaveLen(1))
	})

	It("reloads when the server only acknowledges a create", func() {
		backend.AckWrites()
		view, _ := service.OpenReports(ctx)
		Expect(view.Load(ctx)).To(Succeed())

		created, err := view.Create(ctx, report.Report{Province: "Bali", ReportType: "AB"})
		Expect(err).NotTo(HaveOccurred())
		Expect(created).To(BeNil())
		Expect(view.Records()).To(HaveLen(2))
		Expect(backend.Count(http.MethodGet, "/reports/all")).To(Equal(2))
	})

	Describe("Handler", func() {
		var router chi.Router

		do := func(method, path, body string) *httptest.ResponseRecorder {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
			return rec
		}

		BeforeEach(func() {
			h := report.NewHandler(transport.NewBaseHandler(slogger), service)
			router = chi.NewRouter()
			router.Get("/reports", h.ShowReports)
			router.Post("/reports", h.CreateReport)
			router.Put("/reports/{id}", h.UpdateReport)
			router.Delete("/reports/{id}", h.DeleteReport)
		})

		It("renders the list and answers a bad draft with 400", func() {
			rec := do(http.MethodGet, "/reports", "")
			Expect(rec.Code).To(Equal(http.StatusOK))

			var snap viewmodel.Snapshot[report.Report]
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.Loaded).To(BeTrue())
			Expect(snap.Records).To(HaveLen(1))

			rec = do(http.MethodPost, "/reports", `{"province":"Bali","reportType":"SCREEN"}`)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("answers an update of an unknown report with 404", func() {
			Expect(do(http.MethodGet, "/reports", "").Code).To(Equal(http.StatusOK))
			rec := do(http.MethodPut, "/reports/nope", `{"province":"Bali","reportType":"AB"}`)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})
})
