package domain

import "time"

// Coordinates is a geographic position
type Coordinates struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lng float64 `bson:"lng" json:"lng"`
}

// Location is a physical place holding stock
type Location struct {
	Type           LocationType `bson:"type" json:"type" validate:"omitempty,oneof=warehouse pharmacy hospital clinic supplier other"`
	LocationID     string       `bson:"locationId" json:"locationId" validate:"required"`
	LocationName   string       `bson:"locationName,omitempty" json:"locationName,omitempty"`
	OrganizationID string       `bson:"organizationId,omitempty" json:"organizationId,omitempty"`
	Address        string       `bson:"address,omitempty" json:"address,omitempty"`
	Coordinates    *Coordinates `bson:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// SameAs reports whether both locations name the same place
func (l Location) SameAs(other Location) bool {
	return l.LocationID == other.LocationID
}

// Actor is the already-authorized identity performing an operation
type Actor struct {
	ID          string `bson:"id" json:"id" validate:"required"`
	DisplayName string `bson:"displayName,omitempty" json:"displayName,omitempty"`
}

// Reference links a ledger entry to the external entity that caused it
type Reference struct {
	Kind   ReferenceKind `bson:"kind" json:"kind" validate:"required,oneof=order transfer stocktake other"`
	ID     string        `bson:"id" json:"id" validate:"required"`
	Number string        `bson:"number,omitempty" json:"number,omitempty"`
}

// Drug is the read-only catalog view of a drug batch
type Drug struct {
	ID             string
	Name           string
	BatchNumber    string
	Unit           string
	UnitPrice      *Price
	ExpiryDate     *time.Time
	ProductionDate *time.Time
	SupplierRef    string
}
