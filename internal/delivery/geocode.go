package delivery

import (
	"github.com/cespare/xxhash/v2"

	"ms-grouporder/internal/geo"
)

// Placeholder stands in for geocoding: it places address at a fixed
// pseudo-random offset of at most spread/2 degrees from ref on each axis.
// The same address always lands on the same point.
func Placeholder(ref geo.Point, spread float64, address string) geo.Point {
	h := xxhash.Sum64String(address)
	u := float64(h>>32) / (1 << 32)
	v := float64(h&0xffffffff) / (1 << 32)
	return geo.Point{
		Lat: ref.Lat + (u-0.5)*spread,
		Lng: ref.Lng + (v-0.5)*spread,
	}
}
