package handlers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/staypro/agenthub/internal/dispatch"
	"github.com/staypro/agenthub/pkg/models"
)

// CRMHandler upserts a guest profile in the customer registry.
type CRMHandler struct {
	deps *Deps
}

func (h *CRMHandler) Intent() string { return models.IntentCRM }

func (h *CRMHandler) Handle(ctx context.Context, req *dispatch.Request) (models.Result, error) {
	customerID := req.String("customer_id")
	if customerID == "" {
		customerID = uuid.New().String()
	}

	fullName := req.String("full_name")
	email := req.String("email")
	if fullName == "" && email == "" {
		return models.Errored("full_name or email is required"), nil
	}

	consent, _ := req.Context["marketing_consent"].(bool)
	customer := &models.Customer{
		ID:               customerID,
		TenantID:         req.TenantID,
		FullName:         fullName,
		Email:            email,
		Phone:            req.String("phone"),
		Tags:             stringSlice(req.Context["tags"]),
		Notes:            req.String("notes"),
		Language:         req.String("language"),
		MarketingConsent: consent,
	}
	if err := h.deps.Store.UpsertCustomer(customer); err != nil {
		return models.Errored(fmt.Sprintf("failed to upsert customer: %v", err)), nil
	}

	return models.Completed(map[string]any{
		"customer_id": customerID,
		"full_name":   fullName,
	}), nil
}
