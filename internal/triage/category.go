package triage

// Category is the closed set of problem categories the classifier can emit.
type Category string

const (
	CategoryStructural Category = "structural"
	CategoryMechanism  Category = "mechanism"
	CategoryFabric     Category = "fabric"
	CategoryCushions   Category = "cushions"
	CategoryDelivery   Category = "delivery"
	CategoryAssembly   Category = "assembly"
	CategorySmell      Category = "smell"
	CategoryDimensions Category = "dimensions"
	CategoryUnknown    Category = "unknown"
)

// Label returns the customer-facing French label for the category.
func (c Category) Label() string {
	switch c {
	case CategoryStructural:
		return "Problème de structure"
	case CategoryMechanism:
		return "Dysfonctionnement mécanisme"
	case CategoryFabric:
		return "Défaut tissu/cuir"
	case CategoryCushions:
		return "Affaissement coussins"
	case CategoryDelivery:
		return "Dommage à la livraison"
	case CategoryAssembly:
		return "Problème de montage"
	case CategorySmell:
		return "Odeur inhabituelle"
	case CategoryDimensions:
		return "Problème de dimensions"
	default:
		return "Problème signalé"
	}
}

// Severity is the P0 (critical) to P3 (low) severity tier of a problem.
type Severity string

const (
	SeverityP0 Severity = "P0"
	SeverityP1 Severity = "P1"
	SeverityP2 Severity = "P2"
	SeverityP3 Severity = "P3"
)

// rank orders severities, lower is more severe.
func (s Severity) rank() int {
	switch s {
	case SeverityP0:
		return 0
	case SeverityP1:
		return 1
	case SeverityP2:
		return 2
	default:
		return 3
	}
}

// MoreSevereThan reports whether s outranks other.
func (s Severity) MoreSevereThan(other Severity) bool {
	return s.rank() < other.rank()
}

// Priority is the final four-tier triage priority. It shares the P0-P3
// vocabulary with Severity but is computed from the full factor score, so
// the two are kept as distinct types.
type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// Label returns the French operator label for the priority.
func (p Priority) Label() string {
	switch p {
	case PriorityP0:
		return "CRITIQUE"
	case PriorityP1:
		return "HAUTE"
	case PriorityP2:
		return "MOYENNE"
	default:
		return "BASSE"
	}
}
