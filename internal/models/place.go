package models

// Place is a resolved point of interest near the user, either one of the
// statically configured custom locations or a candidate from the external
// place search.
type Place struct {
	Name             string `json:"name"`
	Category         string `json:"category"`
	DistanceMeters   int    `json:"distance"`
	Address          string `json:"address,omitempty"`
	Phone            string `json:"phone,omitempty"`
	IsCustomLocation bool   `json:"isCustomLocation"`
}

// Key identifies the place for cache-equality purposes: address when
// present, otherwise name. Two distinct places sharing a name and lacking
// an address are indistinguishable by this key.
func (p *Place) Key() string {
	if p == nil {
		return ""
	}
	if p.Address != "" {
		return p.Address
	}
	return p.Name
}

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// CustomLocation is a fixed, process-start-configured place that takes
// precedence over the external lookup.
type CustomLocation struct {
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	Address     string      `json:"address,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}
