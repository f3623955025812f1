// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Structure:
//   - base.go: AggregateModel with the optimistic-lock version
//   - trade.go: sales and purchase_orders, the documents allocations settle
//   - finance.go: receipts, purchase payments and both allocation tables
//   - balance.go: credit roll-ups, supplier balances, aging snapshots and schedules
package models
