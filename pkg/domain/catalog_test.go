package domain

import (
	"fmt"
	"testing"
	"time"
)

func TestEveryPropertyTypeInstantiates(t *testing.T) {
	created := time.Date(2024, 1, 2, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	for _, pt := range PropertyTypes() {
		n := 0
		clauses, err := InstantiateClauses(pt, "ctr_x", created, func() string {
			n++
			return fmt.Sprintf("cls_%d", n)
		})
		if err != nil {
			t.Fatalf("%s: %v", pt, err)
		}
		cat, _ := LookupPropertyType(pt)
		if len(clauses) != len(cat.Static)+len(cat.Dynamic) {
			t.Fatalf("%s: expected %d clauses, got %d", pt, len(cat.Static)+len(cat.Dynamic), len(clauses))
		}
		ids := map[string]bool{}
		titles := map[string]bool{}
		for _, c := range clauses {
			if ids[c.ClauseID] {
				t.Fatalf("%s: duplicate clause id %s", pt, c.ClauseID)
			}
			ids[c.ClauseID] = true
			if c.ContractID != "ctr_x" {
				t.Fatalf("%s: clause %s not bound to contract", pt, c.Key)
			}
			if c.Value.Kind != c.Kind {
				t.Fatalf("%s: clause %s default kind %s != %s", pt, c.Key, c.Value.Kind, c.Kind)
			}
			if c.IsDynamic() {
				if titles[c.Title] {
					t.Fatalf("%s: duplicate dynamic title %q", pt, c.Title)
				}
				titles[c.Title] = true
			}
			if c.Kind == ClauseDate && c.Value.Date != "2024-01-03" {
				t.Fatalf("%s: expected UTC creation date default, got %s", pt, c.Value.Date)
			}
		}
	}
}

func TestHouseCatalogDefaults(t *testing.T) {
	clauses := houseClauses(t)
	if v := clauseByKey(t, clauses, "deposit").Value; v.Kind != ClauseText || v.Text != "" {
		t.Fatalf("expected empty deposit text, got %+v", v)
	}
	if v := clauseByKey(t, clauses, "equipment").Value; !v.Toggle {
		t.Fatalf("expected toggle default true")
	}
	if v := clauseByKey(t, clauses, "payment_method").Value; v.Choice != "Credit Card" {
		t.Fatalf("expected Credit Card, got %q", v.Choice)
	}
	if v := clauseByKey(t, clauses, "rented_items").Value; len(v.Chips) != 0 {
		t.Fatalf("expected empty chips, got %v", v.Chips)
	}
	if clauseByKey(t, clauses, "deposit").Title != "Deposit Deadline" {
		t.Fatalf("unexpected deposit title")
	}
}

func TestVacantLandHasNoPossessionClauses(t *testing.T) {
	cat, ok := LookupPropertyType(PropertyVacantLand)
	if !ok {
		t.Fatalf("vacant_land not registered")
	}
	for _, key := range cat.Dynamic {
		if spec, _ := LookupDynamicClause(key); spec.Category == CategoryPossessions {
			t.Fatalf("unexpected possessions clause %s on vacant land", key)
		}
	}
}

func TestUnknownPropertyType(t *testing.T) {
	if _, err := InstantiateClauses("castle", "ctr", time.Now(), func() string { return "x" }); !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCatalogClausesUseKeysAsIDs(t *testing.T) {
	clauses, err := CatalogClauses(PropertyCondo, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CatalogClauses: %v", err)
	}
	if len(clauses) == 0 {
		t.Fatalf("expected clauses for condo")
	}
	for _, c := range clauses {
		if c.ClauseID != c.Key {
			t.Fatalf("clause %q has id %q", c.Key, c.ClauseID)
		}
		if c.ContractID != "" {
			t.Fatalf("catalog clause should not belong to a contract")
		}
	}
	if _, err := CatalogClauses("castle", time.Now()); !IsKind(err, KindNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown type, got %v", err)
	}
}
