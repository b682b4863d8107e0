package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// AccountID is an account's public identifier in its string-key form.
type AccountID string

// MaxAccountIDLen matches the VARCHAR(56) width of account columns.
const MaxAccountIDLen = 56

// Validate checks that the identifier fits the storage column.
func (a AccountID) Validate() error {
	if a == "" {
		return errors.New("account ID is required")
	}
	if len(a) > MaxAccountIDLen {
		return fmt.Errorf("account ID longer than %d characters", MaxAccountIDLen)
	}
	return nil
}

// AssetType discriminates native and credit assets.
type AssetType uint8

const (
	AssetTypeNative           AssetType = 0
	AssetTypeCreditAlphanum4  AssetType = 1
	AssetTypeCreditAlphanum12 AssetType = 2
)

// Asset identifies a currency. Code and Issuer are empty for the native asset.
type Asset struct {
	Type   AssetType `json:"type"`
	Code   string    `json:"code,omitempty"`
	Issuer AccountID `json:"issuer,omitempty"`
}

// NativeAsset returns the native asset.
func NativeAsset() Asset {
	return Asset{Type: AssetTypeNative}
}

// CreditAsset returns a credit asset, picking the alphanum width from the
// code length.
func CreditAsset(code string, issuer AccountID) Asset {
	t := AssetTypeCreditAlphanum4
	if len(code) > 4 {
		t = AssetTypeCreditAlphanum12
	}
	return Asset{Type: t, Code: code, Issuer: issuer}
}

// IsNative reports whether a is the native asset.
func (a Asset) IsNative() bool {
	return a.Type == AssetTypeNative
}

// Validate checks the code width against the asset type.
func (a Asset) Validate() error {
	switch a.Type {
	case AssetTypeNative:
		if a.Code != "" || a.Issuer != "" {
			return errors.New("native asset has no code or issuer")
		}
		return nil
	case AssetTypeCreditAlphanum4:
		if len(a.Code) == 0 || len(a.Code) > 4 {
			return fmt.Errorf("alphanum4 code length must be in [1, 4], got %d", len(a.Code))
		}
	case AssetTypeCreditAlphanum12:
		if len(a.Code) < 5 || len(a.Code) > 12 {
			return fmt.Errorf("alphanum12 code length must be in [5, 12], got %d", len(a.Code))
		}
	default:
		return fmt.Errorf("unknown asset type %d", a.Type)
	}
	return a.Issuer.Validate()
}

func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return a.Code + ":" + string(a.Issuer)
}

// LedgerKey identifies one ledger entry. Only the fields relevant to Type are
// set; the struct is comparable and used directly as a map key.
type LedgerKey struct {
	Type     Type      `json:"type"`
	Account  AccountID `json:"account"`
	Asset    Asset     `json:"asset,omitempty"`
	OfferID  int64     `json:"offerId,omitempty"`
	DataName string    `json:"dataName,omitempty"`
}

func AccountKey(account AccountID) LedgerKey {
	return LedgerKey{Type: TypeAccount, Account: account}
}

func TrustLineKey(account AccountID, asset Asset) LedgerKey {
	return LedgerKey{Type: TypeTrustLine, Account: account, Asset: asset}
}

func OfferKey(seller AccountID, offerID int64) LedgerKey {
	return LedgerKey{Type: TypeOffer, Account: seller, OfferID: offerID}
}

func DataKey(account AccountID, name string) LedgerKey {
	return LedgerKey{Type: TypeData, Account: account, DataName: name}
}

// String renders the key for logs.
func (k LedgerKey) String() string {
	var b strings.Builder
	b.WriteString(k.Type.String())
	b.WriteByte('/')
	b.WriteString(string(k.Account))
	switch k.Type {
	case TypeTrustLine:
		b.WriteByte('/')
		b.WriteString(k.Asset.String())
	case TypeOffer:
		fmt.Fprintf(&b, "/%d", k.OfferID)
	case TypeData:
		b.WriteByte('/')
		b.WriteString(k.DataName)
	}
	return b.String()
}

// Bytes encodes the key so that byte order equals natural key order: the
// type byte first, then each string field escaped and terminated, offer IDs
// as sign-flipped big-endian integers. Trust lines order by account, issuer
// then code.
func (k LedgerKey) Bytes() []byte {
	buf := make([]byte, 0, 1+len(k.Account)+32)
	buf = append(buf, byte(k.Type))
	buf = appendField(buf, string(k.Account))
	switch k.Type {
	case TypeTrustLine:
		buf = appendField(buf, string(k.Asset.Issuer))
		buf = appendField(buf, k.Asset.Code)
		buf = append(buf, byte(k.Asset.Type))
	case TypeOffer:
		var id [8]byte
		binary.BigEndian.PutUint64(id[:], uint64(k.OfferID)^(1<<63))
		buf = append(buf, id[:]...)
	case TypeData:
		buf = appendField(buf, k.DataName)
	}
	return buf
}

// appendField writes s with 0x00 escaped as 0x00 0xFF and terminated by
// 0x00 0x01, so a field sorts before any field it is a prefix of.
func appendField(buf []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		buf = append(buf, s[i])
		if s[i] == 0x00 {
			buf = append(buf, 0xFF)
		}
	}
	return append(buf, 0x00, 0x01)
}

// Validate checks the key's fields for its type.
func (k LedgerKey) Validate() error {
	if !k.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownEntryType, k.Type)
	}
	if err := k.Account.Validate(); err != nil {
		return err
	}
	switch k.Type {
	case TypeTrustLine:
		if k.Asset.IsNative() {
			return errors.New("trust line key cannot reference the native asset")
		}
		return k.Asset.Validate()
	case TypeData:
		if k.DataName == "" {
			return errors.New("data key requires a name")
		}
	}
	return nil
}
