package adapters

import (
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/server/models"
)

const (
	Clients           = "clients"
	WorkOrders        = "work_orders"
	Quotes            = "quotes"
	CatalogCategories = "catalog_categories"
	CatalogItems      = "catalog_items"
	Invoices          = "invoices"
)

var lineItems = Field{Kind: KindArray}

// Default returns a registry with every business entity, each stored in the
// table of the same name.
func Default() *Registry {
	r := NewRegistry()
	for _, s := range []*Schema{
		clientSchema(),
		workOrderSchema(),
		quoteSchema(),
		catalogCategorySchema(),
		catalogItemSchema(),
		invoiceSchema(),
	} {
		r.RegisterSchema(s, s.Entity)
	}
	return r
}

func clientSchema() *Schema {
	return &Schema{
		Entity: Clients,
		Fields: map[string]Field{
			"name":     {Kind: KindString, Required: true},
			"email":    {Kind: KindString},
			"phone":    {Kind: KindString},
			"address":  {Kind: KindObject},
			"notes":    {Kind: KindString},
			"tags":     {Kind: KindArray},
			"archived": {Kind: KindBool},
		},
		Active: &models.ActiveRule{Field: "archived", Inactive: []any{true}},
		Guards: []DeleteGuard{
			{
				Entity: WorkOrders,
				Field:  "clientId",
				Active: &models.ActiveRule{Field: "status", Inactive: []any{"completed", "cancelled"}},
				Reason: "open work orders",
			},
			{
				Entity: Invoices,
				Field:  "clientId",
				Active: &models.ActiveRule{Field: "status", Inactive: []any{"paid", "void"}},
				Reason: "unpaid invoices",
			},
		},
	}
}

func workOrderSchema() *Schema {
	return &Schema{
		Entity: WorkOrders,
		Fields: map[string]Field{
			"clientId":     {Kind: KindString, Required: true, Ref: Clients},
			"title":        {Kind: KindString, Required: true},
			"description":  {Kind: KindString},
			"status":       {Kind: KindString, Enum: []string{"scheduled", "in_progress", "completed", "cancelled"}},
			"scheduledAt":  {Kind: KindTime},
			"completedAt":  {Kind: KindTime},
			"assignee":     {Kind: KindString},
			"lineItems":    lineItems,
			"notes":        {Kind: KindString},
			"quoteId":      {Kind: KindString, Ref: Quotes},
			"locationNote": {Kind: KindString},
		},
		Active:      &models.ActiveRule{Field: "status", Inactive: []any{"completed", "cancelled"}},
		StatusField: "status",
	}
}

func quoteSchema() *Schema {
	return &Schema{
		Entity: Quotes,
		Fields: map[string]Field{
			"clientId":   {Kind: KindString, Required: true, Ref: Clients},
			"number":     {Kind: KindString},
			"status":     {Kind: KindString, Enum: []string{"draft", "sent", "accepted", "rejected", "expired"}},
			"lineItems":  lineItems,
			"total":      {Kind: KindNumber, Min: ptr(0)},
			"currency":   {Kind: KindString},
			"validUntil": {Kind: KindTime},
			"notes":      {Kind: KindString},
		},
		Active:      &models.ActiveRule{Field: "status", Inactive: []any{"rejected", "expired"}},
		StatusField: "status",
	}
}

func catalogCategorySchema() *Schema {
	return &Schema{
		Entity: CatalogCategories,
		Fields: map[string]Field{
			"name":      {Kind: KindString, Required: true},
			"sortOrder": {Kind: KindInteger},
			"active":    {Kind: KindBool},
		},
		Active: &models.ActiveRule{Field: "active", Inactive: []any{false}},
		Guards: []DeleteGuard{
			{Entity: CatalogItems, Field: "categoryId", Reason: "catalog items in it"},
		},
	}
}

func catalogItemSchema() *Schema {
	return &Schema{
		Entity: CatalogItems,
		Fields: map[string]Field{
			"name":        {Kind: KindString, Required: true},
			"price":       {Kind: KindNumber, Required: true, Min: ptr(0)},
			"unit":        {Kind: KindString},
			"sku":         {Kind: KindString},
			"description": {Kind: KindString},
			"categoryId":  {Kind: KindString, Ref: CatalogCategories},
			"taxable":     {Kind: KindBool},
			"active":      {Kind: KindBool},
		},
		Active: &models.ActiveRule{Field: "active", Inactive: []any{false}},
	}
}

func invoiceSchema() *Schema {
	return &Schema{
		Entity: Invoices,
		Fields: map[string]Field{
			"clientId":    {Kind: KindString, Required: true, Ref: Clients},
			"number":      {Kind: KindString, Required: true},
			"status":      {Kind: KindString, Enum: []string{"draft", "issued", "paid", "void"}},
			"workOrderId": {Kind: KindString, Ref: WorkOrders},
			"lineItems":   lineItems,
			"total":       {Kind: KindNumber, Min: ptr(0)},
			"currency":    {Kind: KindString},
			"issuedAt":    {Kind: KindTime},
			"dueAt":       {Kind: KindTime},
			"paidAt":      {Kind: KindTime},
			"notes":       {Kind: KindString},
		},
		Active:       &models.ActiveRule{Field: "status", Inactive: []any{"void"}},
		StatusField:  "status",
		StatusExtras: []string{"paidAt"},
		CanDelete: func(rec *models.Record) error {
			if status, _ := rec.Fields["status"].(string); status != "" && status != "draft" {
				return common.Invalid("status", "only draft invoices can be deleted, this one is %s", status)
			}
			return nil
		},
	}
}
