package types

import "time"

type StatusCode int

const (
	StatusAwaitingCall  StatusCode = 10
	StatusInProgress    StatusCode = 20
	StatusPendingPickup StatusCode = 30
	StatusFinalOutcome  StatusCode = 40
)

var statusLabels = map[StatusCode]string{
	StatusAwaitingCall:  "awaiting_call",
	StatusInProgress:    "in_progress",
	StatusPendingPickup: "pending_pickup",
	StatusFinalOutcome:  "final_outcome",
}

func (s StatusCode) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

func (s StatusCode) String() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "unknown"
}

// FinalOutcome is the disposition recorded alongside StatusFinalOutcome.
type FinalOutcome int

const (
	OutcomePurchased    FinalOutcome = 10
	OutcomeScrapped     FinalOutcome = 20
	OutcomeNotPurchased FinalOutcome = 30
)

var outcomeLabels = map[FinalOutcome]string{
	OutcomePurchased:    "purchased",
	OutcomeScrapped:     "scrapped",
	OutcomeNotPurchased: "not_purchased",
}

func (o FinalOutcome) String() string {
	if label, ok := outcomeLabels[o]; ok {
		return label
	}
	return "unknown"
}

// CloseReason explains why a request ended as OutcomeNotPurchased.
type CloseReason int

const (
	CloseReasonPriceTooLow          CloseReason = 10
	CloseReasonCustomerUnreachable  CloseReason = 20
	CloseReasonDealerDoesNotCollect CloseReason = 30
	CloseReasonSoldElsewhere        CloseReason = 40
	CloseReasonVehicleCondition     CloseReason = 50
	CloseReasonOther                CloseReason = 90
)

var closeReasonLabels = map[CloseReason]string{
	CloseReasonPriceTooLow:          "price_too_low",
	CloseReasonCustomerUnreachable:  "customer_unreachable",
	CloseReasonDealerDoesNotCollect: "dealer_does_not_collect",
	CloseReasonSoldElsewhere:        "sold_elsewhere",
	CloseReasonVehicleCondition:     "vehicle_condition",
	CloseReasonOther:                "other",
}

func (c CloseReason) String() string {
	if label, ok := closeReasonLabels[c]; ok {
		return label
	}
	return "unknown"
}

// AutomaticAction names work the notification service has to perform after a
// request is closed. The status engine only reports them.
type AutomaticAction string

const (
	ActionNotifyCustomerNoPickup AutomaticAction = "notify_customer_no_pickup"
	ActionReleaseDealerSlot      AutomaticAction = "release_dealer_slot"
)

var closeReasonActions = map[CloseReason][]AutomaticAction{
	CloseReasonDealerDoesNotCollect: {ActionNotifyCustomerNoPickup, ActionReleaseDealerSlot},
}

// ActionsForCloseReason returns the automatic actions implied by reason.
// A nil reason or a reason without actions yields an empty slice.
func ActionsForCloseReason(reason *CloseReason) []AutomaticAction {
	if reason == nil {
		return []AutomaticAction{}
	}

	actions, ok := closeReasonActions[*reason]
	if !ok {
		return []AutomaticAction{}
	}

	out := make([]AutomaticAction, len(actions))
	copy(out, actions)
	return out
}

type StatusRecord struct {
	ID           int64         `db:"id" json:"id"`
	RequestID    string        `db:"request_id" json:"requestId"`
	Status       StatusCode    `db:"status" json:"status"`
	ChangeDate   time.Time     `db:"change_date" json:"changeDate"`
	FinalOutcome *FinalOutcome `db:"final_outcome" json:"finalOutcome,omitempty"`
	CloseReason  *CloseReason  `db:"close_reason" json:"closeReason,omitempty"`
	Notes        *string       `db:"notes" json:"notes,omitempty"`

	// Synthesized marks the default AwaitingCall status of a request that has
	// no history rows yet.
	Synthesized bool `db:"-" json:"synthesized,omitempty"`
}

// DefaultStatus is the status a request has before anyone touched it.
func DefaultStatus(req *Request) *StatusRecord {
	return &StatusRecord{
		RequestID:   req.ID,
		Status:      StatusAwaitingCall,
		ChangeDate:  req.CreatedAt,
		Synthesized: true,
	}
}

type StatusChange struct {
	RequestID    string
	Status       StatusCode
	FinalOutcome *FinalOutcome
	CloseReason  *CloseReason
	Notes        *string
}

type StatusChangeResult struct {
	Record          *StatusRecord     `json:"record"`
	Warnings        []string          `json:"warnings"`
	RequiredActions []AutomaticAction `json:"requiredActions"`
}

type StatusOverview struct {
	Request *Request
	Current *StatusRecord
	History []*StatusRecord
}

// CodeLabel is one entry of the status code catalogue.
type CodeLabel struct {
	Code  int    `json:"code"`
	Label string `json:"label"`
}

type CloseReasonEntry struct {
	CodeLabel
	Actions []AutomaticAction `json:"actions"`
}

type StatusCatalogue struct {
	Statuses     []CodeLabel        `json:"statuses"`
	Outcomes     []CodeLabel        `json:"outcomes"`
	CloseReasons []CloseReasonEntry `json:"closeReasons"`
}

// Catalogue lists every status, outcome and close reason in ascending code order.
func Catalogue() StatusCatalogue {
	cat := StatusCatalogue{}

	for _, s := range []StatusCode{StatusAwaitingCall, StatusInProgress, StatusPendingPickup, StatusFinalOutcome} {
		cat.Statuses = append(cat.Statuses, CodeLabel{Code: int(s), Label: s.String()})
	}

	for _, o := range []FinalOutcome{OutcomePurchased, OutcomeScrapped, OutcomeNotPurchased} {
		cat.Outcomes = append(cat.Outcomes, CodeLabel{Code: int(o), Label: o.String()})
	}

	reasons := []CloseReason{
		CloseReasonPriceTooLow,
		CloseReasonCustomerUnreachable,
		CloseReasonDealerDoesNotCollect,
		CloseReasonSoldElsewhere,
		CloseReasonVehicleCondition,
		CloseReasonOther,
	}
	for _, c := range reasons {
		c := c
		cat.CloseReasons = append(cat.CloseReasons, CloseReasonEntry{
			CodeLabel: CodeLabel{Code: int(c), Label: c.String()},
			Actions:   ActionsForCloseReason(&c),
		})
	}

	return cat
}
