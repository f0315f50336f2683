package taxi

import "taxietl/internal/table"

// Zone is one row of the TLC taxi zone lookup CSV. Empty fields decode to nil.
type Zone struct {
	LocationID  *int64  `csv:"LocationID"`
	Borough     *string `csv:"Borough"`
	Zone        *string `csv:"Zone"`
	ServiceZone *string `csv:"service_zone"`
}

// ZoneTable builds the zone lookup table in ZoneSchema order.
func ZoneTable(zones []Zone) *table.Table {
	id := table.NewSeries(ColLocationID, table.KindInt64)
	borough := table.NewSeries(ColBorough, table.KindString)
	zone := table.NewSeries(ColZone, table.KindString)
	service := table.NewSeries(ColServiceZone, table.KindString)
	for _, z := range zones {
		if z.LocationID == nil {
			id.AppendNull()
		} else {
			id.AppendInt64(*z.LocationID)
		}
		appendOptString(borough, z.Borough)
		appendOptString(zone, z.Zone)
		appendOptString(service, z.ServiceZone)
	}
	return table.MustNew(id, borough, zone, service)
}

func appendOptString(s *table.Series, v *string) {
	if v == nil {
		s.AppendNull()
		return
	}
	s.AppendString(*v)
}
