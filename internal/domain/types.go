package domain

// LocationType classifies where stock is physically held
type LocationType string

const (
	LocationWarehouse LocationType = "warehouse"
	LocationPharmacy  LocationType = "pharmacy"
	LocationHospital  LocationType = "hospital"
	LocationClinic    LocationType = "clinic"
	LocationSupplier  LocationType = "supplier"
	LocationOther     LocationType = "other"
)

// ItemStatus is set by processes outside the ledger. Stock operations report
// it but never branch on it.
type ItemStatus string

const (
	ItemStatusAvailable  ItemStatus = "available"
	ItemStatusReserved   ItemStatus = "reserved"
	ItemStatusQuarantine ItemStatus = "quarantine"
	ItemStatusExpired    ItemStatus = "expired"
	ItemStatusRecalled   ItemStatus = "recalled"
	ItemStatusDamaged    ItemStatus = "damaged"
)

// TransactionType is the kind of quantity change a TransactionRecord describes
type TransactionType string

const (
	TransactionIn         TransactionType = "in"
	TransactionOut        TransactionType = "out"
	TransactionAdjustment TransactionType = "adjustment"
	TransactionTransfer   TransactionType = "transfer"
	TransactionStocktake  TransactionType = "stocktake"
)

// Reason is the business reason behind a movement
type Reason string

const (
	ReasonPurchase    Reason = "purchase"
	ReasonSale        Reason = "sale"
	ReasonTransferIn  Reason = "transfer_in"
	ReasonTransferOut Reason = "transfer_out"
	ReasonReturn      Reason = "return"
	ReasonDamage      Reason = "damage"
	ReasonExpired     Reason = "expired"
	ReasonRecall      Reason = "recall"
	ReasonAdjustment  Reason = "adjustment"
	ReasonStocktake   Reason = "stocktake"
	ReasonProduction  Reason = "production"
	ReasonConsumption Reason = "consumption"
	ReasonOther       Reason = "other"
)

var validReasons = map[Reason]struct{}{
	ReasonPurchase: {}, ReasonSale: {}, ReasonTransferIn: {}, ReasonTransferOut: {},
	ReasonReturn: {}, ReasonDamage: {}, ReasonExpired: {}, ReasonRecall: {},
	ReasonAdjustment: {}, ReasonStocktake: {}, ReasonProduction: {}, ReasonConsumption: {},
	ReasonOther: {},
}

// IsValid reports whether r is one of the enumerated reasons
func (r Reason) IsValid() bool {
	_, ok := validReasons[r]
	return ok
}

// OrDefault returns r, or def when r is empty
func (r Reason) OrDefault(def Reason) Reason {
	if r == "" {
		return def
	}
	return r
}

// RecordStatus is the lifecycle state of a TransactionRecord.
// Only RecordCompleted is ever written; cancelled and reversed are reserved
// for compensating entries, which the ledger does not produce.
type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordCompleted RecordStatus = "completed"
	RecordCancelled RecordStatus = "cancelled"
	RecordReversed  RecordStatus = "reversed"
)

// ReferenceKind tags what a Reference points at
type ReferenceKind string

const (
	ReferenceOrder     ReferenceKind = "order"
	ReferenceTransfer  ReferenceKind = "transfer"
	ReferenceStocktake ReferenceKind = "stocktake"
	ReferenceOther     ReferenceKind = "other"
)
