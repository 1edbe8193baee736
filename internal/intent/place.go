package intent

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNoLocation is returned by Place.Location when the record carries no
// geometry.location.
var ErrNoLocation = errors.New("place has no geometry.location")

// Place is a result record exactly as the places API returned it.
//
// The bytes are passed through untouched; accessors decode the fields the
// front end needs on demand. A zero Place marshals as null.
type Place json.RawMessage

// LatLng is a geographic point in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// placeFields are the fields read by the accessors.
type placeFields struct {
	FormattedAddress string `json:"formatted_address"`
	Description      string `json:"description"`
	Name             string `json:"name"`
	PlaceID          string `json:"place_id"`
	Geometry         *struct {
		Location *LatLng `json:"location"`
	} `json:"geometry"`
}

// MarshalJSON returns the raw record.
func (p Place) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a copy of data.
func (p *Place) UnmarshalJSON(data []byte) error {
	if p == nil {
		return errors.New("intent.Place: UnmarshalJSON on nil pointer")
	}
	*p = append((*p)[0:0], data...)
	return nil
}

func (p Place) fields() placeFields {
	var f placeFields
	if len(p) == 0 {
		return f
	}
	// Records that are not objects simply have no known fields.
	_ = json.Unmarshal(p, &f)
	return f
}

// Address is the display line: formatted_address, else description, else name.
func (p Place) Address() string {
	f := p.fields()
	switch {
	case f.FormattedAddress != "":
		return f.FormattedAddress
	case f.Description != "":
		return f.Description
	default:
		return f.Name
	}
}

// Name returns the name field, if any.
func (p Place) Name() string {
	return p.fields().Name
}

// PlaceID returns the place_id field, if any.
func (p Place) PlaceID() string {
	return p.fields().PlaceID
}

// Location extracts geometry.location.{lat,lng}.
func (p Place) Location() (LatLng, error) {
	f := p.fields()
	if f.Geometry == nil || f.Geometry.Location == nil {
		return LatLng{}, ErrNoLocation
	}
	return *f.Geometry.Location, nil
}

// String renders the address for logs.
func (p Place) String() string {
	if addr := p.Address(); addr != "" {
		return addr
	}
	return fmt.Sprintf("place(%d bytes)", len(p))
}
