package models

// GeoPoint is a latitude/longitude pair used to bias searches.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// SourceEntity is one input row. Empty strings mean the column was absent
// or blank for this row.
type SourceEntity struct {
	RowIndex int
	IDPrefix string
	Name     string
	Phones   string
	Location *GeoPoint
}

// Label returns the best human-readable handle for log lines.
func (e SourceEntity) Label() string {
	switch {
	case e.Name != "":
		return e.Name
	case e.IDPrefix != "":
		return e.IDPrefix
	default:
		return e.Phones
	}
}

// Discovery methods a candidate can originate from. Used only for logging.
const (
	DiscoveredByPhone = "phone"
	DiscoveredByID    = "id"
	DiscoveredByName  = "name"
)

// CandidateURL is a normalized absolute URL believed to reference a listing.
type CandidateURL struct {
	URL    string
	Method string
}
