package metadata

import "github.com/CoderMariusz/MonoPilot-sub046/pkg/apperrors"

// Each orchestrated entity owns one status drawn from a closed set. The maps
// below are the single source of truth for legal transitions; services call
// ValidateTransition instead of comparing strings ad hoc.

type WorkOrderStatus string

const (
	WODraft      WorkOrderStatus = "draft"
	WOReleased   WorkOrderStatus = "released"
	WOInProgress WorkOrderStatus = "in_progress"
	WOPaused     WorkOrderStatus = "paused"
	WOCompleted  WorkOrderStatus = "completed"
	WOCancelled  WorkOrderStatus = "cancelled"
)

var workOrderTransitions = map[WorkOrderStatus][]WorkOrderStatus{
	WODraft:      {WOReleased, WOCancelled},
	WOReleased:   {WOInProgress, WOCancelled},
	WOInProgress: {WOPaused, WOCompleted, WOCancelled},
	WOPaused:     {WOInProgress, WOCancelled},
	WOCompleted:  {},
	WOCancelled:  {},
}

func (s WorkOrderStatus) CanTransitionTo(next WorkOrderStatus) bool {
	return contains(workOrderTransitions[s], next)
}

func (s WorkOrderStatus) ValidateTransition(next WorkOrderStatus) error {
	if !s.CanTransitionTo(next) {
		return &apperrors.InvalidTransitionError{Entity: "work order", From: string(s), To: string(next)}
	}
	return nil
}

// Terminal reports whether no further transitions are possible.
func (s WorkOrderStatus) Terminal() bool {
	return len(workOrderTransitions[s]) == 0
}

type TransferOrderStatus string

const (
	TODraft     TransferOrderStatus = "draft"
	TOConfirmed TransferOrderStatus = "confirmed"
	TOShipped   TransferOrderStatus = "shipped"
	TOReceived  TransferOrderStatus = "received"
	TOClosed    TransferOrderStatus = "closed"
	TOCancelled TransferOrderStatus = "cancelled"
)

var transferOrderTransitions = map[TransferOrderStatus][]TransferOrderStatus{
	TODraft:     {TOConfirmed, TOCancelled},
	TOConfirmed: {TOShipped, TOCancelled},
	TOShipped:   {TOShipped, TOReceived}, // repeated ship covers partial shipments
	TOReceived:  {TOClosed},
	TOClosed:    {},
	TOCancelled: {},
}

func (s TransferOrderStatus) CanTransitionTo(next TransferOrderStatus) bool {
	return contains(transferOrderTransitions[s], next)
}

func (s TransferOrderStatus) ValidateTransition(next TransferOrderStatus) error {
	if !s.CanTransitionTo(next) {
		return &apperrors.InvalidTransitionError{Entity: "transfer order", From: string(s), To: string(next)}
	}
	return nil
}

type PurchaseOrderStatus string

const (
	PODraft           PurchaseOrderStatus = "draft"
	POPendingApproval PurchaseOrderStatus = "pending_approval"
	POApproved        PurchaseOrderStatus = "approved"
	POReceiving       PurchaseOrderStatus = "receiving"
	POClosed          PurchaseOrderStatus = "closed"
	POCancelled       PurchaseOrderStatus = "cancelled"
)

var purchaseOrderTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	PODraft:           {POPendingApproval, POCancelled},
	POPendingApproval: {POApproved, PODraft, POCancelled},
	POApproved:        {POReceiving, POCancelled},
	POReceiving:       {POClosed},
	POClosed:          {},
	POCancelled:       {},
}

func (s PurchaseOrderStatus) CanTransitionTo(next PurchaseOrderStatus) bool {
	return contains(purchaseOrderTransitions[s], next)
}

func (s PurchaseOrderStatus) ValidateTransition(next PurchaseOrderStatus) error {
	if !s.CanTransitionTo(next) {
		return &apperrors.InvalidTransitionError{Entity: "purchase order", From: string(s), To: string(next)}
	}
	return nil
}

type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentPacking   ShipmentStatus = "packing"
	ShipmentPacked    ShipmentStatus = "packed"
	ShipmentShipped   ShipmentStatus = "shipped"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentCancelled ShipmentStatus = "cancelled"
	ShipmentException ShipmentStatus = "exception"
)

var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentPending:   {ShipmentPacking, ShipmentCancelled, ShipmentException},
	ShipmentPacking:   {ShipmentPacked, ShipmentCancelled, ShipmentException},
	ShipmentPacked:    {ShipmentShipped, ShipmentCancelled, ShipmentException},
	ShipmentShipped:   {ShipmentDelivered, ShipmentException},
	ShipmentDelivered: {},
	ShipmentCancelled: {},
	ShipmentException: {},
}

func (s ShipmentStatus) CanTransitionTo(next ShipmentStatus) bool {
	return contains(shipmentTransitions[s], next)
}

func (s ShipmentStatus) ValidateTransition(next ShipmentStatus) error {
	if !s.CanTransitionTo(next) {
		return &apperrors.InvalidTransitionError{Entity: "shipment", From: string(s), To: string(next)}
	}
	return nil
}

type RMAStatus string

const (
	RMAPending   RMAStatus = "pending"
	RMAApproved  RMAStatus = "approved"
	RMAReceiving RMAStatus = "receiving"
	RMAReceived  RMAStatus = "received"
	RMAProcessed RMAStatus = "processed"
	RMAClosed    RMAStatus = "closed"
)

var rmaTransitions = map[RMAStatus][]RMAStatus{
	RMAPending:   {RMAApproved},
	RMAApproved:  {RMAReceiving},
	RMAReceiving: {RMAReceived},
	RMAReceived:  {RMAProcessed},
	RMAProcessed: {RMAClosed},
	RMAClosed:    {},
}

func (s RMAStatus) CanTransitionTo(next RMAStatus) bool {
	return contains(rmaTransitions[s], next)
}

func (s RMAStatus) ValidateTransition(next RMAStatus) error {
	if !s.CanTransitionTo(next) {
		return &apperrors.InvalidTransitionError{Entity: "rma", From: string(s), To: string(next)}
	}
	return nil
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
