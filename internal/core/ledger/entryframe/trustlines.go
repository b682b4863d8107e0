package entryframe

import (
	"database/sql"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

var trustLinesTable = &table{
	typ: entry.TypeTrustLine,
	shape: &relationaldb.Shape{
		Table: "trustlines",
		Columns: []relationaldb.Column{
			{Name: "accountid", Kind: relationaldb.Text},
			{Name: "issuer", Kind: relationaldb.Text},
			{Name: "assetcode", Kind: relationaldb.Text},
			{Name: "assettype", Kind: relationaldb.Int},
			{Name: "tlimit", Kind: relationaldb.Int},
			{Name: "balance", Kind: relationaldb.Int},
			{Name: "flags", Kind: relationaldb.Int},
			{Name: "lastmodified", Kind: relationaldb.Int},
			{Name: "buyingliabilities", Kind: relationaldb.NullInt},
			{Name: "sellingliabilities", Kind: relationaldb.NullInt},
		},
		KeyColumns: 3,
	},
	columns: `accountid          VARCHAR(56) NOT NULL,
		issuer             VARCHAR(56) NOT NULL,
		assetcode          VARCHAR(12) NOT NULL,
		assettype          INT NOT NULL,
		tlimit             BIGINT NOT NULL CHECK (tlimit > 0),
		balance            BIGINT NOT NULL CHECK (balance >= 0),
		flags              INT NOT NULL,
		lastmodified       BIGINT NOT NULL,
		buyingliabilities  BIGINT CHECK (buyingliabilities >= 0),
		sellingliabilities BIGINT CHECK (sellingliabilities >= 0),
		PRIMARY KEY (accountid, issuer, assetcode)`,
	row:  trustLineRow,
	key:  trustLineKey,
	scan: scanTrustLine,
}

func trustLineRow(e *entry.LedgerEntry) (relationaldb.Row, error) {
	tl, ok := e.Data.(*entry.TrustLineEntry)
	if !ok {
		return nil, fmt.Errorf("trustlines: unexpected payload %T", e.Data)
	}
	key, err := trustLineKey(tl.Key())
	if err != nil {
		return nil, err
	}
	buying, selling := liabilityColumns(tl.Liabilities)
	return append(key,
		int64(tl.Asset.Type),
		tl.Limit,
		tl.Balance,
		int64(tl.Flags),
		int64(e.LastModifiedLedgerSeq),
		buying,
		selling,
	), nil
}

// trustLineKey rejects keys that can never name a stored row: native
// assets and an issuer's line to itself.
func trustLineKey(k entry.LedgerKey) (relationaldb.Row, error) {
	if k.Asset.IsNative() {
		return nil, ErrNativeTrustLine
	}
	if k.Account == k.Asset.Issuer {
		return nil, fmt.Errorf("%w: %s", ErrIssuerTrustLine, k)
	}
	return relationaldb.Row{string(k.Account), string(k.Asset.Issuer), k.Asset.Code}, nil
}

func scanTrustLine(sc scanner) (*entry.LedgerEntry, error) {
	var (
		tl                    entry.TrustLineEntry
		account, issuer       string
		assetType, flags, mod int64
		buying, selling       sql.NullInt64
	)
	if err := sc.Scan(&account, &issuer, &tl.Asset.Code, &assetType, &tl.Limit, &tl.Balance,
		&flags, &mod, &buying, &selling); err != nil {
		return nil, err
	}
	l, err := liabilitiesFrom("load_trustline", buying, selling)
	if err != nil {
		return nil, err
	}
	tl.AccountID = entry.AccountID(account)
	tl.Asset.Type = entry.AssetType(assetType)
	tl.Asset.Issuer = entry.AccountID(issuer)
	tl.Flags = uint32(flags)
	tl.Liabilities = l
	return entry.New(&tl, uint32(mod)), nil
}
