package platform

// RSSI bounds of the legacy WiFi level calculation.
const (
	MinRSSI = -100
	MaxRSSI = -55
)

// WifiLevels is the number of levels WiFi readings are mapped onto.
const WifiLevels = 5

// CalculateSignalLevel maps an RSSI in dBm onto numLevels discrete levels
// (0 to numLevels-1), using the same thresholds as the platform's WiFi
// manager: anything at or below MinRSSI is 0, anything at or above MaxRSSI
// is the top level, and values in between are scaled linearly and truncated.
func CalculateSignalLevel(rssi, numLevels int) int {
	if numLevels < 2 {
		return 0
	}
	if rssi <= MinRSSI {
		return 0
	}
	if rssi >= MaxRSSI {
		return numLevels - 1
	}
	return (rssi - MinRSSI) * (numLevels - 1) / (MaxRSSI - MinRSSI)
}

// ClampLevel bounds a telephony level to 0-4.
func ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 4 {
		return 4
	}
	return level
}
