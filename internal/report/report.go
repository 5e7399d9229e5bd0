// Package report mirrors the remote stock reports.
package report

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/ledger-console/internal/core/common/validation"
	"github.com/frahmantamala/ledger-console/internal/gateway"
	"github.com/frahmantamala/ledger-console/internal/session"
	"github.com/frahmantamala/ledger-console/internal/viewmodel"
)

// Types are the parts a stock report can be filed against.
var Types = []string{
	"Led",
	"AB",
	"C COVER",
	"D COVER",
	"CABLE",
	"HINGES",
	"POWER PIN",
	"MOTHERBOARD",
	"BATTERY",
	"KEYBOARD",
	"FAN",
	"SPEAKER",
}

type Report struct {
	viewmodel.Identity
	Province   string `json:"province" validate:"required"`
	ReportType string `json:"reportType" validate:"required,report_type"`
	Comments   string `json:"comments"`
}

func (r Report) WithRecordID(id string) Report {
	r.Identity = r.Identity.WithID(id)
	return r
}

type View = viewmodel.Collection[Report]

type Service struct {
	client    *gateway.Client
	store     session.Store
	validator *validation.Validator
	logger    *slog.Logger
}

func NewService(client *gateway.Client, store session.Store, v *validation.Validator, logger *slog.Logger) (*Service, error) {
	if v == nil {
		v = validation.NewValidator()
	}
	if err := v.RegisterChoice("report_type", Types); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{client: client, store: store, validator: v, logger: logger}, nil
}

// OpenReports opens the report list.
func (s *Service) OpenReports(_ context.Context) (*View, error) {
	remote := gateway.NewResource[Report](s.client, gateway.ReportEndpoint)
	return viewmodel.New[Report]("reports", remote, s.store, viewmodel.Options{
		Validate: viewmodel.ValidateWith(s.validator),
		Logger:   s.logger,
	}), nil
}
