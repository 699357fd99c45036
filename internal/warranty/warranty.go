// Package warranty models product warranties and evaluates claim coverage.
package warranty

import (
	"fmt"
	"strings"
	"time"
)

// Type is the commercial warranty tier.
type Type string

const (
	TypeStandard Type = "standard"
	TypeExtended Type = "extended"
	TypePremium  Type = "premium"
)

// Status is the lifecycle status of a warranty.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusSuspended Status = "suspended"
	StatusClaimed   Status = "claimed"
)

// Component is the part of the product a coverage entry applies to.
type Component string

const (
	ComponentStructure  Component = "structure"
	ComponentMechanisms Component = "mechanisms"
	ComponentFabric     Component = "fabric"
	ComponentCushions   Component = "cushions"
	ComponentGeneral    Component = "general"
)

// Coverage describes how long one component is covered and what is excluded.
type Coverage struct {
	Covered       bool      `json:"covered"`
	DurationYears int       `json:"duration_years"`
	EndDate       time.Time `json:"end_date"`
	Exclusions    []string  `json:"exclusions,omitempty"`
}

// ClaimRecord is one past claim filed against a warranty.
type ClaimRecord struct {
	ID          string    `json:"claim_id"`
	Date        time.Time `json:"date"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Resolution  string    `json:"resolution,omitempty"`
	Cost        float64   `json:"cost"`
}

// Warranty is a product warranty with per-component coverage windows and the
// claims filed against it. Coverage starts at delivery, not purchase.
type Warranty struct {
	ID          string `json:"warranty_id"`
	OrderNumber string `json:"order_number"`
	ProductSKU  string `json:"product_sku"`
	ProductName string `json:"product_name"`
	CustomerID  string `json:"customer_id"`

	PurchaseDate time.Time `json:"purchase_date"`
	DeliveryDate time.Time `json:"delivery_date"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`

	Type   Type   `json:"type"`
	Status Status `json:"status"`

	Coverage map[Component]Coverage `json:"coverage"`
	Claims   []ClaimRecord          `json:"claims_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStandardWarranty builds a warranty with the standard coverage matrix:
// structure 5 years, mechanisms 3 years, fabric and cushions 2 years with the
// usual wear exclusions. The overall window is the 2-year legal guarantee.
func NewStandardWarranty(orderNumber, productSKU, productName, customerID string, purchaseDate, deliveryDate time.Time) *Warranty {
	now := time.Now()
	return &Warranty{
		ID:           fmt.Sprintf("WAR-%s-%s", now.Format("20060102"), orderSuffix(orderNumber)),
		OrderNumber:  orderNumber,
		ProductSKU:   productSKU,
		ProductName:  productName,
		CustomerID:   customerID,
		PurchaseDate: purchaseDate,
		DeliveryDate: deliveryDate,
		StartDate:    deliveryDate,
		EndDate:      deliveryDate.AddDate(2, 0, 0),
		Type:         TypeStandard,
		Status:       StatusActive,
		Coverage: map[Component]Coverage{
			ComponentStructure: {
				Covered:       true,
				DurationYears: 5,
				EndDate:       deliveryDate.AddDate(5, 0, 0),
			},
			ComponentMechanisms: {
				Covered:       true,
				DurationYears: 3,
				EndDate:       deliveryDate.AddDate(3, 0, 0),
			},
			ComponentFabric: {
				Covered:       true,
				DurationYears: 2,
				EndDate:       deliveryDate.AddDate(2, 0, 0),
				Exclusions:    []string{"stains", "tears", "burns", "pet_damage"},
			},
			ComponentCushions: {
				Covered:       true,
				DurationYears: 2,
				EndDate:       deliveryDate.AddDate(2, 0, 0),
				Exclusions:    []string{"stains"},
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Active reports whether the warranty as a whole is in force at the given
// time. The structural window can outlive the overall one; component checks
// go through ComponentCovered.
func (w *Warranty) Active(at time.Time) bool {
	return w.Status == StatusActive && at.Before(w.EndDate)
}

// ComponentCovered reports whether the component's own coverage window is
// still open at the given time.
func (w *Warranty) ComponentCovered(c Component, at time.Time) bool {
	cov, ok := w.Coverage[c]
	if !ok {
		return false
	}
	return cov.Covered && at.Before(cov.EndDate)
}

// RemainingDays returns whole days of coverage left for a component, or for
// the overall window when the component has no dedicated coverage. Never
// negative.
func (w *Warranty) RemainingDays(c Component, at time.Time) int {
	end := w.EndDate
	if cov, ok := w.Coverage[c]; ok {
		end = cov.EndDate
	}
	days := int(end.Sub(at).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// HasExclusion reports whether the named exclusion applies to a component.
// Unknown components exclude everything.
func (w *Warranty) HasExclusion(c Component, exclusion string) bool {
	cov, ok := w.Coverage[c]
	if !ok {
		return true
	}
	for _, e := range cov.Exclusions {
		if e == exclusion {
			return true
		}
	}
	return false
}

// AddClaim appends a claim record to the history and returns it. A claim
// with a resolution is recorded as already resolved.
func (w *Warranty) AddClaim(claimType, description, resolution string, cost float64) ClaimRecord {
	now := time.Now()
	status := "pending"
	if resolution != "" {
		status = "resolved"
	}
	claim := ClaimRecord{
		ID:          fmt.Sprintf("CLM-%s-%03d", now.Format("20060102"), len(w.Claims)+1),
		Date:        now,
		Type:        claimType,
		Description: description,
		Status:      status,
		Resolution:  resolution,
		Cost:        cost,
	}
	w.Claims = append(w.Claims, claim)
	w.UpdatedAt = now
	return claim
}

// ClaimCount returns how many claims were filed against this warranty.
func (w *Warranty) ClaimCount() int {
	return len(w.Claims)
}

func orderSuffix(orderNumber string) string {
	if i := strings.LastIndex(orderNumber, "-"); i >= 0 && i < len(orderNumber)-1 {
		return orderNumber[i+1:]
	}
	return orderNumber
}
