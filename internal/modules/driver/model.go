// README: Driver and cab-type records plus the vehicle-type reference resolver.
package driver

import (
	"strings"

	"swiftcab/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusAssigned  Status = "assigned"
	StatusOffline   Status = "offline"
)

type Driver struct {
	ID            types.ID
	Name          string
	Phone         string
	Status        Status
	StatusVersion int
	// Data-quality variance: a record carries a cab-type id, a free-text
	// type name, or both.
	VehicleTypeID   *types.ID
	VehicleTypeName string
	VehicleReg      string
	VehicleModel    string
}

// CabType attributes beyond Name are opaque to this core; matching uses the
// name only.
type CabType struct {
	ID       types.ID
	Name     string
	Capacity int
	BaseFare types.Money
}

// VehicleTypeRef is a tagged variant over the two shapes a driver's vehicle
// type arrives in. The id path is authoritative; the literal name is the
// fallback.
type VehicleTypeRef struct {
	id   *types.ID
	name string
}

func RefByID(id types.ID) VehicleTypeRef { return VehicleTypeRef{id: &id} }

func RefByName(name string) VehicleTypeRef { return VehicleTypeRef{name: name} }

// TypeRef builds the reference for a driver record, preferring the id.
func (d *Driver) TypeRef() VehicleTypeRef {
	if d.VehicleTypeID != nil && *d.VehicleTypeID != "" {
		return VehicleTypeRef{id: d.VehicleTypeID, name: d.VehicleTypeName}
	}
	return VehicleTypeRef{name: d.VehicleTypeName}
}

// Resolve returns the canonical cab-type name for the reference. The id is
// tried first against the lookup; a record whose id does not resolve falls
// back to its literal name.
func (r VehicleTypeRef) Resolve(lookup map[types.ID]CabType) (string, bool) {
	if r.id != nil {
		if ct, ok := lookup[*r.id]; ok {
			return NormalizeTypeName(ct.Name), true
		}
	}
	if r.name != "" {
		return NormalizeTypeName(r.name), true
	}
	return "", false
}

// NormalizeTypeName is the single normalization applied before cab-type
// comparison: trim plus case-fold.
func NormalizeTypeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
