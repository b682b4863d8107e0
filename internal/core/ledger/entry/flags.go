package entry

// Trust line flags
const (
	// TrustLineAuthorized is set when the issuer authorized the holder to
	// hold and transact the asset.
	TrustLineAuthorized uint32 = 0x1

	// TrustLineFlagsMask covers every trust line flag defined so far.
	TrustLineFlagsMask = TrustLineAuthorized
)

// Offer flags
const (
	OfferPassive uint32 = 0x1
)

// Account flags
const (
	AccountAuthRequired  uint32 = 0x1
	AccountAuthRevocable uint32 = 0x2
	AccountAuthImmutable uint32 = 0x4
)
