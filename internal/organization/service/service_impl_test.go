package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/domain"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/internal/organization/repository"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/db"
	"github.com/rujopadi/autocontrol-sanitario-app-sub005/pkg/tenantctx"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&domain.Organization{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}
	return New(Params{Node: node, Repo: repository.New(dbConn)}), dbConn
}

func provision(t *testing.T, svc domain.Service, dbConn *gorm.DB, name string) *domain.Organization {
	t.Helper()

	var org *domain.Organization
	err := dbConn.Transaction(func(tx *gorm.DB) error {
		var err error
		org, err = svc.Provision(context.Background(), tx, name)
		return err
	})
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	return org
}

func TestProvisionSlugAndDefaults(t *testing.T) {
	svc, dbConn := newTestService(t)

	org := provision(t, svc, dbConn, "  Panadería El Sol  ")
	if org.Name != "Panadería El Sol" {
		t.Fatalf("expected trimmed name, got %q", org.Name)
	}
	if org.Slug != "panaderia-el-sol" {
		t.Fatalf("expected transliterated slug, got %q", org.Slug)
	}
	if org.Plan != domain.PlanFree || org.SubscriptionStatus != domain.StatusTrial {
		t.Fatalf("expected free trial defaults, got %s/%s", org.Plan, org.SubscriptionStatus)
	}
	if !org.IsActive {
		t.Fatal("expected active organization")
	}
}

func TestProvisionSlugCollision(t *testing.T) {
	svc, dbConn := newTestService(t)

	first := provision(t, svc, dbConn, "Panadería El Sol")
	second := provision(t, svc, dbConn, "Panaderia el Sol")
	if second.Slug == first.Slug {
		t.Fatalf("expected distinct slugs, both %q", first.Slug)
	}
	if second.Slug != "panaderia-el-sol-2" {
		t.Fatalf("expected numbered suffix, got %q", second.Slug)
	}
}

func TestProvisionRejectsEmptyName(t *testing.T) {
	svc, dbConn := newTestService(t)

	err := dbConn.Transaction(func(tx *gorm.DB) error {
		_, err := svc.Provision(context.Background(), tx, "   ")
		return err
	})
	if err != domain.ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestUpdateName(t *testing.T) {
	svc, dbConn := newTestService(t)
	org := provision(t, svc, dbConn, "Panadería El Sol")
	scope := tenantctx.Scope{UserID: 1, OrgID: org.ID, Role: "admin"}

	newName := "Panadería La Luna"
	updated, err := svc.Update(context.Background(), scope, domain.UpdateRequest{Name: &newName})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != newName {
		t.Fatalf("expected renamed org, got %q", updated.Name)
	}
	// The slug is the stable public handle and never changes on rename.
	if updated.Slug != org.Slug {
		t.Fatalf("expected slug %q to survive rename, got %q", org.Slug, updated.Slug)
	}

	blank := "  "
	if _, err := svc.Update(context.Background(), scope, domain.UpdateRequest{Name: &blank}); err != domain.ErrInvalidName {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestChangePlan(t *testing.T) {
	svc, dbConn := newTestService(t)
	org := provision(t, svc, dbConn, "Panadería El Sol")
	scope := tenantctx.Scope{UserID: 1, OrgID: org.ID, Role: "admin"}

	changed, err := svc.ChangePlan(context.Background(), scope, domain.ChangePlanRequest{Plan: domain.PlanPremium})
	if err != nil {
		t.Fatalf("change plan failed: %v", err)
	}
	if changed.Plan != domain.PlanPremium {
		t.Fatalf("expected premium, got %s", changed.Plan)
	}
	if changed.SubscriptionStatus != domain.StatusActive {
		t.Fatalf("expected active subscription, got %s", changed.SubscriptionStatus)
	}

	if _, err := svc.ChangePlan(context.Background(), scope, domain.ChangePlanRequest{Plan: "enterprise"}); err != domain.ErrInvalidPlan {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}
