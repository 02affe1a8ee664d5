package match

import (
	"github.com/joseph-ayodele/invoice-bench/constants"
	"github.com/joseph-ayodele/invoice-bench/internal/entity"
)

// Branch is the acceptance rule that applies to a reference record.
type Branch int

const (
	// BranchPurchaseOrder applies when the reference carries a purchase-order number.
	BranchPurchaseOrder Branch = iota + 1
	// BranchFullRecord applies otherwise.
	BranchFullRecord
)

func (b Branch) String() string {
	switch b {
	case BranchPurchaseOrder:
		return "purchase_order"
	case BranchFullRecord:
		return "full_record"
	default:
		return "unknown"
	}
}

var (
	purchaseOrderRequired = []constants.Field{
		constants.PurchaseOrderNumber,
		constants.RecipientName,
		constants.InvoiceDate,
	}
	fullRecordRequired = []constants.Field{
		constants.RecipientName,
		constants.InvoiceNumber,
		constants.InvoiceDate,
		constants.TotalAmount,
		constants.Currency,
	}
	// at least one of these must match under BranchFullRecord
	fullRecordAnyOf = []constants.Field{
		constants.BankAccountID,
		constants.TaxID,
	}
)

// SelectBranch picks the acceptance branch from the reference alone.
func SelectBranch(ref entity.Record) Branch {
	if ref.Get(constants.PurchaseOrderNumber).IsBlank() {
		return BranchFullRecord
	}
	return BranchPurchaseOrder
}

// IsAcceptable reports whether cand is usable without manual review.
//
// With a purchase-order number on the reference, the PO itself, the recipient and
// the invoice date must match. A wrong PO rejects the candidate; it is not
// re-evaluated under the other branch. Without a PO, recipient, invoice number,
// date, total and currency must match, plus the bank account or the tax id.
func IsAcceptable(ref, cand entity.Record) bool {
	if SelectBranch(ref) == BranchPurchaseOrder {
		return allMatch(ref, cand, purchaseOrderRequired)
	}
	if !allMatch(ref, cand, fullRecordRequired) {
		return false
	}
	for _, f := range fullRecordAnyOf {
		if IsMatch(f, ref.Get(f), cand.Get(f)) {
			return true
		}
	}
	return false
}

func allMatch(ref, cand entity.Record, fields []constants.Field) bool {
	for _, f := range fields {
		if !IsMatch(f, ref.Get(f), cand.Get(f)) {
			return false
		}
	}
	return true
}
