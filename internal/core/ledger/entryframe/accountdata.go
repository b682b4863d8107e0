package entryframe

import (
	"encoding/base64"
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

// Data values are stored base64 encoded in a text column.
var dataTable = &table{
	typ: entry.TypeData,
	shape: &relationaldb.Shape{
		Table: "accountdata",
		Columns: []relationaldb.Column{
			{Name: "accountid", Kind: relationaldb.Text},
			{Name: "dataname", Kind: relationaldb.Text},
			{Name: "datavalue", Kind: relationaldb.Text},
			{Name: "lastmodified", Kind: relationaldb.Int},
		},
		KeyColumns: 2,
	},
	columns: `accountid    VARCHAR(56) NOT NULL,
		dataname     VARCHAR(88) NOT NULL,
		datavalue    VARCHAR(112) NOT NULL,
		lastmodified BIGINT NOT NULL,
		PRIMARY KEY (accountid, dataname)`,
	row:  dataRow,
	key:  dataKey,
	scan: scanData,
}

func dataRow(e *entry.LedgerEntry) (relationaldb.Row, error) {
	d, ok := e.Data.(*entry.DataEntry)
	if !ok {
		return nil, fmt.Errorf("accountdata: unexpected payload %T", e.Data)
	}
	return relationaldb.Row{
		string(d.AccountID),
		d.Name,
		base64.StdEncoding.EncodeToString(d.Value),
		int64(e.LastModifiedLedgerSeq),
	}, nil
}

func dataKey(k entry.LedgerKey) (relationaldb.Row, error) {
	return relationaldb.Row{string(k.Account), k.DataName}, nil
}

func scanData(sc scanner) (*entry.LedgerEntry, error) {
	var (
		d                    entry.DataEntry
		account, name, value string
		mod                  int64
	)
	if err := sc.Scan(&account, &name, &value, &mod); err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, relationaldb.NewDataError("load_data", "datavalue is not base64",
			fmt.Errorf("%w: %v", relationaldb.ErrInvalidDataFormat, err))
	}
	d.AccountID = entry.AccountID(account)
	d.Name = name
	d.Value = raw
	return entry.New(&d, uint32(mod)), nil
}
