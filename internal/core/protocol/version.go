package protocol

// Version is a ledger protocol version number.
type Version uint32

// Protocol versions at which ledger-entry rules change.
const (
	// VersionLiabilities is the first version that tracks buying and selling
	// liabilities on trust lines and enforces them against balance and limit.
	VersionLiabilities Version = 10

	// CurrentVersion is the newest version this node understands.
	CurrentVersion Version = 11
)

// SupportsLiabilities reports whether liabilities are enforced at v.
func (v Version) SupportsLiabilities() bool {
	return v >= VersionLiabilities
}
