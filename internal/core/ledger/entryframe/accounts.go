package entryframe

import (
	"database/sql"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

var accountsTable = &table{
	typ: entry.TypeAccount,
	shape: &relationaldb.Shape{
		Table: "accounts",
		Columns: []relationaldb.Column{
			{Name: "accountid", Kind: relationaldb.Text},
			{Name: "balance", Kind: relationaldb.Int},
			{Name: "seqnum", Kind: relationaldb.Int},
			{Name: "numsubentries", Kind: relationaldb.Int},
			{Name: "flags", Kind: relationaldb.Int},
			{Name: "homedomain", Kind: relationaldb.Text},
			{Name: "lastmodified", Kind: relationaldb.Int},
			{Name: "buyingliabilities", Kind: relationaldb.NullInt},
			{Name: "sellingliabilities", Kind: relationaldb.NullInt},
		},
		KeyColumns: 1,
	},
	columns: `accountid          VARCHAR(56) PRIMARY KEY,
		balance            BIGINT NOT NULL CHECK (balance >= 0),
		seqnum             BIGINT NOT NULL,
		numsubentries      BIGINT NOT NULL CHECK (numsubentries >= 0),
		flags              BIGINT NOT NULL,
		homedomain         VARCHAR(44) NOT NULL,
		lastmodified       BIGINT NOT NULL,
		buyingliabilities  BIGINT CHECK (buyingliabilities >= 0),
		sellingliabilities BIGINT CHECK (sellingliabilities >= 0)`,
	row:  accountRow,
	key:  accountKey,
	scan: scanAccount,
}

func accountRow(e *entry.LedgerEntry) (relationaldb.Row, error) {
	a, ok := e.Data.(*entry.AccountEntry)
	if !ok {
		return nil, fmt.Errorf("accounts: unexpected payload %T", e.Data)
	}
	buying, selling := liabilityColumns(a.Liabilities)
	return relationaldb.Row{
		string(a.AccountID),
		a.Balance,
		a.SeqNum,
		int64(a.NumSubEntries),
		int64(a.Flags),
		a.HomeDomain,
		int64(e.LastModifiedLedgerSeq),
		buying,
		selling,
	}, nil
}

func accountKey(k entry.LedgerKey) (relationaldb.Row, error) {
	return relationaldb.Row{string(k.Account)}, nil
}

func scanAccount(sc scanner) (*entry.LedgerEntry, error) {
	var (
		a                      entry.AccountEntry
		id                     string
		subEntries, flags, mod int64
		buying, selling        sql.NullInt64
	)
	if err := sc.Scan(&id, &a.Balance, &a.SeqNum, &subEntries, &flags, &a.HomeDomain,
		&mod, &buying, &selling); err != nil {
		return nil, err
	}
	l, err := liabilitiesFrom("load_account", buying, selling)
	if err != nil {
		return nil, err
	}
	a.AccountID = entry.AccountID(id)
	a.NumSubEntries = uint32(subEntries)
	a.Flags = uint32(flags)
	a.Liabilities = l
	return entry.New(&a, uint32(mod)), nil
}
