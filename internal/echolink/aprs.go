package echolink

import "fmt"

// BeaconParams describes the station information an Echolink instance
// periodically sends to the APRS-IS feed so its location shows up on
// aprs.fi, mirroring the original controller's position-beacon packet.
type BeaconParams struct {
	Callsign string
	Lat      float64 // decimal degrees, +N
	Lon      float64 // decimal degrees, +E
	Comment  string
}

// FormatPositionReport renders an uncompressed APRS position report
// ("!DDMM.mmN/DDDMM.mmW$comment") per the APRS protocol spec §8; encoding
// only, no network transport (that belongs to whatever APRS-IS client the
// host process wires up, out of scope here).
func FormatPositionReport(p BeaconParams) string {
	latDeg, latMin := splitDegrees(p.Lat)
	latHemi := 'N'
	if p.Lat < 0 {
		latHemi = 'S'
	}
	lonDeg, lonMin := splitDegrees(p.Lon)
	lonHemi := 'E'
	if p.Lon < 0 {
		lonHemi = 'W'
	}
	return fmt.Sprintf("%s>APRS:!%02d%05.2f%c/%03d%05.2f%c$%s",
		p.Callsign, latDeg, latMin, latHemi, lonDeg, lonMin, lonHemi, p.Comment)
}

func splitDegrees(v float64) (deg int, min float64) {
	if v < 0 {
		v = -v
	}
	deg = int(v)
	min = (v - float64(deg)) * 60.0
	return deg, min
}
