package state

const (
	// DefaultLamportsPerByteYear is the storage price per byte per year.
	DefaultLamportsPerByteYear = 3480
	// DefaultExemptionThreshold is the number of years of rent a record must
	// hold to be exempt.
	DefaultExemptionThreshold = 2
	// accountStorageOverhead is charged on top of every record's data size.
	accountStorageOverhead = 128
)

// Rent is the storage deposit schedule.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionThreshold  uint64
}

// DefaultRent returns the stock deposit schedule.
func DefaultRent() Rent {
	return Rent{LamportsPerByteYear: DefaultLamportsPerByteYear, ExemptionThreshold: DefaultExemptionThreshold}
}

// MinimumBalance returns the balance a record of size data bytes must hold to
// be rent exempt.
func (r Rent) MinimumBalance(size int) uint64 {
	if size < 0 {
		size = 0
	}
	return (uint64(size) + accountStorageOverhead) * r.LamportsPerByteYear * r.ExemptionThreshold
}
