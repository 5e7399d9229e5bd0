package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/ledger-console/pkg/logger"
)

func TestLogger(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Logger Suite")
}

var _ = Describe("context logger", func() {
	var (
		buf  *bytes.Buffer
		base *slog.Logger
	)

	BeforeEach(func() {
		buf = &bytes.Buffer{}
		base = slog.New(slog.NewTextHandler(buf, nil))
	})

	It("falls back to the process logger", func() {
		Expect(logger.From(context.Background())).To(BeIdenticalTo(logger.LoggerWrapper()))
	})

	It("returns the attached logger", func() {
		ctx := logger.Into(context.Background(), base)
		Expect(logger.From(ctx)).To(BeIdenticalTo(base))
	})

	It("ignores a nil logger", func() {
		ctx := context.Background()
		Expect(logger.Into(ctx, nil)).To(Equal(ctx))
	})

	It("stacks attributes across calls", func() {
		ctx := logger.Into(context.Background(), base)
		ctx = logger.With(ctx, "trace_id", "t-1")
		ctx = logger.With(ctx, "view", "ledger")

		logger.From(ctx).Info("loaded")
		Expect(buf.String()).To(ContainSubstring("trace_id=t-1"))
		Expect(buf.String()).To(ContainSubstring("view=ledger"))
	})
})
