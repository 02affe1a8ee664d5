package constants

// Category decides which canonicalizer and which equality rule apply to a field.
type Category string

const (
	CategoryMoney      Category = "Money"
	CategoryDate       Category = "Date"
	CategoryIdentifier Category = "Identifier"
	CategoryName       Category = "Name"
	CategoryFreeText   Category = "FreeText"
)

var allCategories = []Category{
	CategoryMoney,
	CategoryDate,
	CategoryIdentifier,
	CategoryName,
	CategoryFreeText,
}

// Categories returns the closed set of field categories.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// fieldCategories is the static field -> category table.
var fieldCategories = map[Field]Category{
	InvoiceNumber:       CategoryFreeText,
	InvoiceDate:         CategoryDate,
	VendorName:          CategoryName,
	RecipientName:       CategoryName,
	TotalAmount:         CategoryMoney,
	Currency:            CategoryFreeText,
	PurchaseOrderNumber: CategoryFreeText,
	TaxID:               CategoryIdentifier,
	BankAccountID:       CategoryIdentifier,
	TaxRate:             CategoryMoney,
}

// CategoryOf returns the category of f. Unknown fields are FreeText.
func CategoryOf(f Field) Category {
	if c, ok := fieldCategories[f]; ok {
		return c
	}
	return CategoryFreeText
}
