package entryframe

import (
	"fmt"

	"github.com/LeJamon/goLedgerApply/internal/core/ledger/entry"
	"github.com/LeJamon/goLedgerApply/internal/storage/relationaldb"
)

var offersTable = &table{
	typ: entry.TypeOffer,
	shape: &relationaldb.Shape{
		Table: "offers",
		Columns: []relationaldb.Column{
			{Name: "sellerid", Kind: relationaldb.Text},
			{Name: "offerid", Kind: relationaldb.Int},
			{Name: "sellingassettype", Kind: relationaldb.Int},
			{Name: "sellingassetcode", Kind: relationaldb.Text},
			{Name: "sellingissuer", Kind: relationaldb.Text},
			{Name: "buyingassettype", Kind: relationaldb.Int},
			{Name: "buyingassetcode", Kind: relationaldb.Text},
			{Name: "buyingissuer", Kind: relationaldb.Text},
			{Name: "amount", Kind: relationaldb.Int},
			{Name: "pricen", Kind: relationaldb.Int},
			{Name: "priced", Kind: relationaldb.Int},
			{Name: "flags", Kind: relationaldb.Int},
			{Name: "lastmodified", Kind: relationaldb.Int},
		},
		KeyColumns: 2,
	},
	columns: `sellerid         VARCHAR(56) NOT NULL,
		offerid          BIGINT NOT NULL CHECK (offerid >= 0),
		sellingassettype INT NOT NULL,
		sellingassetcode VARCHAR(12) NOT NULL,
		sellingissuer    VARCHAR(56) NOT NULL,
		buyingassettype  INT NOT NULL,
		buyingassetcode  VARCHAR(12) NOT NULL,
		buyingissuer     VARCHAR(56) NOT NULL,
		amount           BIGINT NOT NULL CHECK (amount >= 0),
		pricen           INT NOT NULL,
		priced           INT NOT NULL,
		flags            INT NOT NULL,
		lastmodified     BIGINT NOT NULL,
		PRIMARY KEY (sellerid, offerid)`,
	row:  offerRow,
	key:  offerKey,
	scan: scanOffer,
}

func offerRow(e *entry.LedgerEntry) (relationaldb.Row, error) {
	o, ok := e.Data.(*entry.OfferEntry)
	if !ok {
		return nil, fmt.Errorf("offers: unexpected payload %T", e.Data)
	}
	return relationaldb.Row{
		string(o.SellerID),
		o.OfferID,
		int64(o.Selling.Type),
		o.Selling.Code,
		string(o.Selling.Issuer),
		int64(o.Buying.Type),
		o.Buying.Code,
		string(o.Buying.Issuer),
		o.Amount,
		int64(o.PriceN),
		int64(o.PriceD),
		int64(o.Flags),
		int64(e.LastModifiedLedgerSeq),
	}, nil
}

func offerKey(k entry.LedgerKey) (relationaldb.Row, error) {
	return relationaldb.Row{string(k.Account), k.OfferID}, nil
}

func scanOffer(sc scanner) (*entry.LedgerEntry, error) {
	var (
		o                                   entry.OfferEntry
		seller, sellIssuer, buyIssuer       string
		sellType, buyType, n, d, flags, mod int64
	)
	if err := sc.Scan(&seller, &o.OfferID, &sellType, &o.Selling.Code, &sellIssuer,
		&buyType, &o.Buying.Code, &buyIssuer, &o.Amount, &n, &d, &flags, &mod); err != nil {
		return nil, err
	}
	o.SellerID = entry.AccountID(seller)
	o.Selling.Type = entry.AssetType(sellType)
	o.Selling.Issuer = entry.AccountID(sellIssuer)
	o.Buying.Type = entry.AssetType(buyType)
	o.Buying.Issuer = entry.AccountID(buyIssuer)
	o.PriceN = int32(n)
	o.PriceD = int32(d)
	o.Flags = uint32(flags)
	return entry.New(&o, uint32(mod)), nil
}
