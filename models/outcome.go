package models

// OutcomeStatus is the terminal result of one symbol's execution attempt.
type OutcomeStatus string

const (
	OutcomeOpenedProtected                 OutcomeStatus = "OPENED_PROTECTED"
	OutcomeOpenedUnprotectedRolledBack     OutcomeStatus = "OPENED_UNPROTECTED_ROLLED_BACK"
	OutcomeOpenedUnprotectedRollbackFailed OutcomeStatus = "OPENED_UNPROTECTED_ROLLBACK_FAILED"
	OutcomeSkippedInvalidPrice             OutcomeStatus = "SKIPPED_INVALID_PRICE"
	OutcomeRejected                        OutcomeStatus = "REJECTED"
)

// Severity orders outcomes for reporting. Higher is worse.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

func (s OutcomeStatus) Severity() Severity {
	switch s {
	case OutcomeOpenedProtected:
		return SeverityInfo
	case OutcomeOpenedUnprotectedRollbackFailed:
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// PositionIntent is the per-attempt plan for one short. The protective
// prices may move while the retry loop widens them.
type PositionIntent struct {
	Symbol            string
	Quantity          float64
	ReferencePrice    float64
	StopLossPrice     float64
	TakeProfitPrice   float64
	QuantityPrecision int
	PricePrecision    int
}

// LegResult records what happened to one protective order.
type LegResult struct {
	Kind         ConditionalKind
	Placed       bool
	Attempts     int
	InitialPrice float64
	FinalPrice   float64
	Order        OrderRef
	Err          error
}

// OrderOutcome is the structured report for one basket member.
type OrderOutcome struct {
	Symbol     string
	Status     OutcomeStatus
	Quantity   float64
	EntryPrice float64
	Entry      *OrderRef
	StopLoss   LegResult
	TakeProfit LegResult
	Rollback   *OrderRef
	Err        error
}

// Protected reports whether both protective legs were confirmed.
func (o OrderOutcome) Protected() bool {
	return o.StopLoss.Placed && o.TakeProfit.Placed
}

// Reason is a printable description of Err.
func (o OrderOutcome) Reason() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}
