package pnm

// MaxValue is the largest sample maximum a file may declare
const MaxValue = 65535

// RescaleTable maps every sample in [0, maxval] linearly onto [0, 255],
// rounding to nearest. The table has exactly maxval+1 entries.
func RescaleTable(maxval int) []uint8 {
	if maxval <= 0 || maxval > MaxValue {
		return nil
	}
	table := make([]uint8, maxval+1)
	fillRescale(table, maxval)
	return table
}

func fillRescale(table []uint8, maxval int) {
	half := maxval / 2
	for v := range table {
		table[v] = uint8((v*255 + half) / maxval)
	}
}
