// Package taxi turns NYC TLC trip shards into one canonical trip table and
// provides the zone lookup schema.
package taxi

import (
	"fmt"
	"strings"

	"taxietl/internal/table"
)

// Canonical trip column names.
const (
	ColTripID         = "trip_id"
	ColVendorID       = "vendor_id"
	ColPickup         = "pickup_datetime"
	ColDropoff        = "dropoff_datetime"
	ColPassengerCount = "passenger_count"
	ColTripDistance   = "trip_distance"
	ColFareAmount     = "fare_amount"
	ColTipAmount      = "tip_amount"
	ColTotalAmount    = "total_amount"
	ColPaymentType    = "payment_type"
	ColPaymentTypeID  = "payment_type_id"
	ColExtractedAt    = "extracted_at"

	tripIDTimeLayout = "20060102150405"
)

// TripSchema is the canonical trip layout every normalized table has.
var TripSchema = table.Schema{
	{Name: ColTripID, Kind: table.KindString},
	{Name: ColVendorID, Kind: table.KindInt64},
	{Name: ColPickup, Kind: table.KindTimestamp},
	{Name: ColDropoff, Kind: table.KindTimestamp},
	{Name: ColPassengerCount, Kind: table.KindInt64},
	{Name: ColTripDistance, Kind: table.KindFloat64},
	{Name: ColFareAmount, Kind: table.KindFloat64},
	{Name: ColTipAmount, Kind: table.KindFloat64},
	{Name: ColTotalAmount, Kind: table.KindFloat64},
	{Name: ColPaymentTypeID, Kind: table.KindInt64},
	{Name: ColExtractedAt, Kind: table.KindTimestamp},
}

// TimestampColumns lists the trip columns that must reach the sink naive.
var TimestampColumns = []string{ColPickup, ColDropoff, ColExtractedAt}

// sourceField maps one canonical field onto the source names accepted for it,
// in priority order.
type sourceField struct {
	target  string
	kind    table.Kind
	aliases []string
}

// sourceFields is the alias table. The first alias present in a shard wins.
var sourceFields = []sourceField{
	{ColVendorID, table.KindInt64, []string{"vendorid", "vendor_id"}},
	{ColPickup, table.KindTimestamp, []string{"tpep_pickup_datetime", "lpep_pickup_datetime", "pickup_datetime"}},
	{ColDropoff, table.KindTimestamp, []string{"tpep_dropoff_datetime", "lpep_dropoff_datetime", "dropoff_datetime"}},
	{ColPassengerCount, table.KindInt64, []string{"passenger_count"}},
	{ColTripDistance, table.KindFloat64, []string{"trip_distance"}},
	{ColFareAmount, table.KindFloat64, []string{"fare_amount"}},
	{ColTipAmount, table.KindFloat64, []string{"tip_amount"}},
	{ColTotalAmount, table.KindFloat64, []string{"total_amount"}},
	{ColPaymentType, table.KindInt64, []string{"payment_type"}},
}

// EmptyTrips returns a zero-row trip table with every canonical column typed.
func EmptyTrips() *table.Table {
	return table.Empty(TripSchema)
}

// Type is a taxi color tag as used in TLC file names.
type Type string

const (
	Yellow Type = "yellow"
	Green  Type = "green"
)

// DefaultTypes are fetched when no taxi types are configured.
var DefaultTypes = []Type{Yellow, Green}

// ParseType validates a taxi type tag.
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case Yellow, Green:
		return t, nil
	default:
		return "", fmt.Errorf("unknown taxi type %q", s)
	}
}

// ParseTypes parses a list of taxi type tags, dropping duplicates.
func ParseTypes(in []string) ([]Type, error) {
	seen := make(map[Type]bool, len(in))
	out := make([]Type, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			continue
		}
		t, err := ParseType(s)
		if err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// Zone lookup column names.
const (
	ColLocationID  = "location_id"
	ColBorough     = "borough"
	ColZone        = "zone"
	ColServiceZone = "service_zone"
)

// ZoneSchema is the layout of the zone lookup table.
var ZoneSchema = table.Schema{
	{Name: ColLocationID, Kind: table.KindInt64},
	{Name: ColBorough, Kind: table.KindString},
	{Name: ColZone, Kind: table.KindString},
	{Name: ColServiceZone, Kind: table.KindString},
}
